package interfaces

import (
	"context"

	"ridepool/internal/models"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// GetByIDForUpdate reads the ride straight from the store, never from a
	// cache. Seat checks inside the ride's actor must use this read so a
	// stale cached document can never pass a reservation check.
	GetByIDForUpdate(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	Search(ctx context.Context, params *models.RideSearchParams, page *utils.PaginationParams) ([]*models.Ride, int64, error)

	// ApplySeatChange adjusts available_seats by delta and sets the ride
	// status in one update. Only the ride's seat-inventory actor calls it,
	// always inside a store transaction together with the booking write.
	// A decrement only matches when enough seats remain, so even a bad read
	// upstream cannot drive the count negative.
	ApplySeatChange(ctx context.Context, id primitive.ObjectID, delta int, status models.RideStatus) error

	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.RideStatus) error
}
