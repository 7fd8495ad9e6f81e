package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusActive    RideStatus = "active"
	RideStatusFull      RideStatus = "full"
	RideStatusCancelled RideStatus = "cancelled"
	RideStatusCompleted RideStatus = "completed"
)

type Ride struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DriverID           primitive.ObjectID `json:"driver_id" bson:"driver_id" validate:"required"`
	VehicleID          primitive.ObjectID `json:"vehicle_id" bson:"vehicle_id"`
	OriginCity         string             `json:"origin_city" bson:"origin_city" validate:"required"`
	OriginAddress      string             `json:"origin_address" bson:"origin_address"`
	DestinationCity    string             `json:"destination_city" bson:"destination_city" validate:"required"`
	DestinationAddress string             `json:"destination_address" bson:"destination_address"`
	DepartureTime      time.Time          `json:"departure_time" bson:"departure_time" validate:"required"`
	PricePerSeat       float64            `json:"price_per_seat" bson:"price_per_seat"`
	TotalSeats         int                `json:"total_seats" bson:"total_seats" validate:"required,min=1"`
	AvailableSeats     int                `json:"available_seats" bson:"available_seats"`
	WomenOnly          bool               `json:"women_only" bson:"women_only"`
	PetsAllowed        bool               `json:"pets_allowed" bson:"pets_allowed"`
	SmokingAllowed     bool               `json:"smoking_allowed" bson:"smoking_allowed"`
	Notes              string             `json:"notes" bson:"notes"`
	Status             RideStatus         `json:"status" bson:"status" default:"active"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

type RideSearchParams struct {
	OriginCity      string     `json:"origin_city" form:"origin_city"`
	DestinationCity string     `json:"destination_city" form:"destination_city"`
	DepartureAfter  *time.Time `json:"departure_after" form:"departure_after"`
	DepartureBefore *time.Time `json:"departure_before" form:"departure_before"`
	MinSeats        int        `json:"min_seats" form:"min_seats"`
	MaxPrice        float64    `json:"max_price" form:"max_price"`
	WomenOnly       bool       `json:"women_only" form:"women_only"`
}
