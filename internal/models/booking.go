package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string
type PaymentMethod string
type PaymentStatus string

const (
	BookingStatusRequested BookingStatus = "REQUESTED"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"

	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodOnline PaymentMethod = "ONLINE"

	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type Booking struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID         primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	PassengerID    primitive.ObjectID `json:"passenger_id" bson:"passenger_id" validate:"required"`
	SeatsBooked    int                `json:"seats_booked" bson:"seats_booked" validate:"required,min=1"`
	TotalPrice     float64            `json:"total_price" bson:"total_price"`
	Status         BookingStatus      `json:"status" bson:"status" default:"REQUESTED"`
	PaymentMethod  PaymentMethod      `json:"payment_method" bson:"payment_method"`
	PaymentStatus  PaymentStatus      `json:"payment_status" bson:"payment_status" default:"PENDING"`
	IdempotencyKey string             `json:"idempotency_key,omitempty" bson:"idempotency_key"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
	ConfirmedAt    *time.Time         `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// IsSeatHolding reports whether the booking currently counts against the
// ride's available seats.
func (b *Booking) IsSeatHolding() bool {
	return b.Status == BookingStatusRequested || b.Status == BookingStatusConfirmed
}

// BookingView is the joined shape returned by booking list endpoints.
type BookingView struct {
	Booking         `bson:",inline"`
	OriginCity      string    `json:"origin_city" bson:"origin_city"`
	DestinationCity string    `json:"destination_city" bson:"destination_city"`
	DepartureTime   time.Time `json:"departure_time" bson:"departure_time"`
	OtherPartyName  string    `json:"other_party_name" bson:"other_party_name"`
}
