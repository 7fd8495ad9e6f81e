package services

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideService covers the ride lifecycle around the seat-inventory core:
// creation, lookup and search. Seat mutation is never done here; that is the
// BookingService actor's job.
type RideService struct {
	rides  interfaces.RideRepository
	logger *logger.Logger
}

func NewRideService(rides interfaces.RideRepository, log *logger.Logger) *RideService {
	return &RideService{
		rides:  rides,
		logger: log,
	}
}

func (s *RideService) Create(ctx context.Context, ride *models.Ride) error {
	if ride.TotalSeats < 1 || ride.TotalSeats > utils.MaxSeatsPerBooking {
		return ErrInvalidSeats
	}
	if ride.PricePerSeat < 0 {
		return ErrInvalidPrice
	}

	now := time.Now()
	ride.AvailableSeats = ride.TotalSeats
	ride.Status = models.RideStatusActive
	ride.CreatedAt = now
	ride.UpdatedAt = now

	if err := s.rides.Create(ctx, ride); err != nil {
		return fmt.Errorf("create ride: %w", err)
	}

	s.logger.LogBookingEvent(ride.ID, "ride_created", map[string]interface{}{
		"driver_id":   ride.DriverID.Hex(),
		"total_seats": ride.TotalSeats,
	})
	return nil
}

func (s *RideService) Get(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load ride: %w", err)
	}
	if ride == nil {
		return nil, ErrRideNotFound
	}
	return ride, nil
}

func (s *RideService) Search(ctx context.Context, params *models.RideSearchParams, page *utils.PaginationParams) ([]*models.Ride, int64, error) {
	return s.rides.Search(ctx, params, page)
}
