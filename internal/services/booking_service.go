package services

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/actor"
	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingService owns seat inventory. Every operation that touches a ride's
// seats or bookings runs through the actor registry under the ride's key, so
// a ride's check-decrement-insert sequence never interleaves with another
// reservation or cancellation for the same ride. Rides never share state, so
// different rides proceed fully in parallel.
type BookingService struct {
	registry *actor.Registry
	rides    interfaces.RideRepository
	bookings interfaces.BookingRepository
	tx       interfaces.Transactor
	logger   *logger.Logger
}

func NewBookingService(
	registry *actor.Registry,
	rides interfaces.RideRepository,
	bookings interfaces.BookingRepository,
	tx interfaces.Transactor,
	log *logger.Logger,
) *BookingService {
	return &BookingService{
		registry: registry,
		rides:    rides,
		bookings: bookings,
		tx:       tx,
		logger:   log,
	}
}

type ReserveRequest struct {
	RideID         primitive.ObjectID
	PassengerID    primitive.ObjectID
	Seats          int
	PaymentMethod  models.PaymentMethod
	IdempotencyKey string
}

func rideKey(id primitive.ObjectID) string {
	return "ride:" + id.Hex()
}

// Reserve books seats on a ride. Retrying with the same idempotency key
// returns the original booking without consuming seats again; the key lookup
// and the reservation run as one serialized operation so a retry cannot race
// past a first attempt.
func (s *BookingService) Reserve(ctx context.Context, req *ReserveRequest) (*models.Booking, error) {
	if req.Seats < 1 || req.Seats > utils.MaxSeatsPerBooking {
		return nil, ErrInvalidSeats
	}

	var booking *models.Booking
	err := s.registry.Do(ctx, rideKey(req.RideID), func(ctx context.Context) error {
		if req.IdempotencyKey != "" {
			existing, err := s.bookings.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
			if existing != nil {
				if existing.RideID != req.RideID || existing.PassengerID != req.PassengerID || existing.SeatsBooked != req.Seats {
					return ErrBookingConflict
				}
				booking = existing
				return nil
			}
		}

		ride, err := s.rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return fmt.Errorf("load ride: %w", err)
		}
		if ride == nil {
			return ErrRideNotFound
		}
		if ride.Status != models.RideStatusActive {
			return ErrRideNotActive
		}
		if ride.DriverID == req.PassengerID {
			return ErrSelfBooking
		}
		if ride.AvailableSeats < req.Seats {
			return ErrInsufficientSeats
		}

		idempotencyKey := req.IdempotencyKey
		if idempotencyKey == "" {
			idempotencyKey = primitive.NewObjectID().Hex()
		}

		now := time.Now()
		b := &models.Booking{
			RideID:         req.RideID,
			PassengerID:    req.PassengerID,
			SeatsBooked:    req.Seats,
			TotalPrice:     ride.PricePerSeat * float64(req.Seats),
			Status:         models.BookingStatusRequested,
			PaymentMethod:  req.PaymentMethod,
			PaymentStatus:  models.PaymentStatusPending,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		newStatus := models.RideStatusActive
		if ride.AvailableSeats-req.Seats == 0 {
			newStatus = models.RideStatusFull
		}

		err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.rides.ApplySeatChange(ctx, ride.ID, -req.Seats, newStatus); err != nil {
				return err
			}
			return s.bookings.Create(ctx, b)
		})
		if err != nil {
			return fmt.Errorf("reserve transaction: %w", err)
		}

		booking = b
		s.logger.LogBookingEvent(ride.ID, "reserved", map[string]interface{}{
			"booking_id":   b.ID.Hex(),
			"passenger_id": b.PassengerID.Hex(),
			"seats":        b.SeatsBooked,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel releases a booking's seats back to its ride. Only the passenger who
// made the booking may cancel it, and only while it still holds seats.
func (s *BookingService) Cancel(ctx context.Context, bookingID, passengerID primitive.ObjectID) (*models.Booking, error) {
	// Unserialized peek to learn which ride's actor owns this booking; the
	// booking is re-read inside the serialized operation before any check.
	peek, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if peek == nil {
		return nil, ErrBookingNotFound
	}

	var cancelled *models.Booking
	err = s.registry.Do(ctx, rideKey(peek.RideID), func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if b == nil {
			return ErrBookingNotFound
		}
		if b.PassengerID != passengerID {
			return ErrNotAllowed
		}
		if !b.IsSeatHolding() {
			return ErrInvalidTransition
		}

		ride, err := s.rides.GetByIDForUpdate(ctx, b.RideID)
		if err != nil {
			return fmt.Errorf("load ride: %w", err)
		}
		if ride == nil {
			return ErrRideNotFound
		}

		newStatus := ride.Status
		if newStatus == models.RideStatusFull {
			newStatus = models.RideStatusActive
		}

		now := time.Now()
		err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.rides.ApplySeatChange(ctx, ride.ID, b.SeatsBooked, newStatus); err != nil {
				return err
			}
			return s.bookings.UpdateStatus(ctx, b.ID, models.BookingStatusCancelled, now)
		})
		if err != nil {
			return fmt.Errorf("cancel transaction: %w", err)
		}

		b.Status = models.BookingStatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		cancelled = b

		s.logger.LogBookingEvent(ride.ID, "cancelled", map[string]interface{}{
			"booking_id": b.ID.Hex(),
			"seats":      b.SeatsBooked,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Confirm marks a requested booking as confirmed. Driver-only; a pure status
// transition with no seat-count effect.
func (s *BookingService) Confirm(ctx context.Context, bookingID, driverID primitive.ObjectID) error {
	return s.transition(ctx, bookingID, driverID, models.BookingStatusRequested, models.BookingStatusConfirmed)
}

// Complete marks a confirmed booking as completed. Driver-only.
func (s *BookingService) Complete(ctx context.Context, bookingID, driverID primitive.ObjectID) error {
	return s.transition(ctx, bookingID, driverID, models.BookingStatusConfirmed, models.BookingStatusCompleted)
}

func (s *BookingService) transition(ctx context.Context, bookingID, driverID primitive.ObjectID, from, to models.BookingStatus) error {
	peek, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("load booking: %w", err)
	}
	if peek == nil {
		return ErrBookingNotFound
	}

	return s.registry.Do(ctx, rideKey(peek.RideID), func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if b == nil {
			return ErrBookingNotFound
		}

		ride, err := s.rides.GetByIDForUpdate(ctx, b.RideID)
		if err != nil {
			return fmt.Errorf("load ride: %w", err)
		}
		if ride == nil {
			return ErrRideNotFound
		}
		if ride.DriverID != driverID {
			return ErrNotAllowed
		}
		if b.Status != from {
			return ErrInvalidTransition
		}

		if err := s.bookings.UpdateStatus(ctx, b.ID, to, time.Now()); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}

		s.logger.LogBookingEvent(ride.ID, string(to), map[string]interface{}{
			"booking_id": b.ID.Hex(),
		})
		return nil
	})
}

// ListMine returns the caller's bookings: as passenger their own, as driver
// the bookings made against their rides.
func (s *BookingService) ListMine(ctx context.Context, userID primitive.ObjectID, role string, status models.BookingStatus, page *utils.PaginationParams) ([]*models.BookingView, int64, error) {
	if role == "driver" {
		return s.bookings.ListByDriver(ctx, userID, status, page)
	}
	return s.bookings.ListByPassenger(ctx, userID, status, page)
}
