package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	"ridepool/pkg/cache"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const rideCacheTTL = 30 * time.Second

type rideRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

func NewRideRepository(db *mongo.Database, redis *cache.RedisCache) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
		cache:      redis,
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = primitive.NewObjectID()

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	r.cacheRide(ctx, ride)
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	if ride := r.getRideFromCache(ctx, id.Hex()); ride != nil {
		return ride, nil
	}

	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	if ride.Status == models.RideStatusActive {
		r.cacheRide(ctx, &ride)
	}

	return &ride, nil
}

// GetByIDForUpdate bypasses the cache entirely. The seat-inventory actor
// calls this before a reservation check, because a concurrent public read
// can repopulate the cache with a seat count the actor already changed.
func (r *rideRepository) GetByIDForUpdate(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return &ride, nil
}

func (r *rideRepository) Search(ctx context.Context, params *models.RideSearchParams, page *utils.PaginationParams) ([]*models.Ride, int64, error) {
	filter := bson.M{
		"status":          models.RideStatusActive,
		"available_seats": bson.M{"$gt": 0},
	}

	if params.OriginCity != "" {
		filter["origin_city"] = bson.M{"$regex": params.OriginCity, "$options": "i"}
	}
	if params.DestinationCity != "" {
		filter["destination_city"] = bson.M{"$regex": params.DestinationCity, "$options": "i"}
	}
	if params.DepartureAfter != nil || params.DepartureBefore != nil {
		window := bson.M{}
		if params.DepartureAfter != nil {
			window["$gte"] = *params.DepartureAfter
		}
		if params.DepartureBefore != nil {
			window["$lte"] = *params.DepartureBefore
		}
		filter["departure_time"] = window
	}
	if params.MinSeats > 0 {
		filter["available_seats"] = bson.M{"$gte": params.MinSeats}
	}
	if params.MaxPrice > 0 {
		filter["price_per_seat"] = bson.M{"$lte": params.MaxPrice}
	}
	if params.WomenOnly {
		filter["women_only"] = true
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	opts := page.GetFindOptions()
	opts.SetSort(bson.D{{Key: "departure_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, 0, fmt.Errorf("failed to decode rides: %w", err)
	}

	return rides, total, nil
}

func (r *rideRepository) ApplySeatChange(ctx context.Context, id primitive.ObjectID, delta int, status models.RideStatus) error {
	filter := bson.M{"_id": id}
	if delta < 0 {
		// A decrement must only match while enough seats remain. The seat
		// count can never go negative, whatever the caller read beforehand.
		filter["available_seats"] = bson.M{"$gte": -delta}
	}

	result, err := r.collection.UpdateOne(
		ctx,
		filter,
		bson.M{
			"$inc": bson.M{"available_seats": delta},
			"$set": bson.M{"status": status, "updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to apply seat change: %w", err)
	}
	if result.MatchedCount == 0 {
		if delta < 0 {
			return services.ErrInsufficientSeats
		}
		return fmt.Errorf("ride %s not found for seat change", id.Hex())
	}

	// Stale cached seat counts must never feed a reservation check.
	r.invalidateRideCache(ctx, id.Hex())
	return nil
}

func (r *rideRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.RideStatus) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update ride status: %w", err)
	}

	r.invalidateRideCache(ctx, id.Hex())
	return nil
}

func (r *rideRepository) cacheRide(ctx context.Context, ride *models.Ride) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, rideCacheKey(ride.ID.Hex()), ride, rideCacheTTL)
}

func (r *rideRepository) getRideFromCache(ctx context.Context, id string) *models.Ride {
	if r.cache == nil {
		return nil
	}
	var ride models.Ride
	if err := r.cache.Get(ctx, rideCacheKey(id), &ride); err != nil {
		return nil
	}
	return &ride
}

func (r *rideRepository) invalidateRideCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, rideCacheKey(id))
}

func rideCacheKey(id string) string {
	return "ride:" + id
}
