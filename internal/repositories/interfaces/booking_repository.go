package interfaces

import (
	"context"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)

	// GetByIdempotencyKey returns nil, nil when no booking carries the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)

	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.BookingStatus, at time.Time) error

	ListByPassenger(ctx context.Context, passengerID primitive.ObjectID, status models.BookingStatus, page *utils.PaginationParams) ([]*models.BookingView, int64, error)
	ListByDriver(ctx context.Context, driverID primitive.ObjectID, status models.BookingStatus, page *utils.PaginationParams) ([]*models.BookingView, int64, error)
}
