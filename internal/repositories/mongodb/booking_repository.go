package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/services"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type bookingRepository struct {
	collection *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) interfaces.BookingRepository {
	return &bookingRepository{
		collection: db.Collection("bookings"),
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		// The unique index on idempotency_key is the backstop for the same
		// key arriving on two different rides, where the two actors cannot
		// see each other's in-flight insert.
		if mongo.IsDuplicateKeyError(err) {
			return services.ErrBookingConflict
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	var booking models.Booking
	err := r.collection.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&booking)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}

	return &booking, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.BookingStatus, at time.Time) error {
	updates := bson.M{
		"status":     status,
		"updated_at": at,
	}

	switch status {
	case models.BookingStatusConfirmed:
		updates["confirmed_at"] = at
	case models.BookingStatusCancelled:
		updates["cancelled_at"] = at
	case models.BookingStatusCompleted:
		updates["completed_at"] = at
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("booking %s not found for status update", id.Hex())
	}

	return nil
}

func (r *bookingRepository) ListByPassenger(ctx context.Context, passengerID primitive.ObjectID, status models.BookingStatus, page *utils.PaginationParams) ([]*models.BookingView, int64, error) {
	match := bson.M{"passenger_id": passengerID}
	if status != "" {
		match["status"] = status
	}

	// The other party of a passenger's booking is the ride's driver.
	return r.listViews(ctx, match, nil, "ride.driver_id", page)
}

func (r *bookingRepository) ListByDriver(ctx context.Context, driverID primitive.ObjectID, status models.BookingStatus, page *utils.PaginationParams) ([]*models.BookingView, int64, error) {
	match := bson.M{}
	if status != "" {
		match["status"] = status
	}

	return r.listViews(ctx, match, bson.M{"ride.driver_id": driverID}, "passenger_id", page)
}

// listViews joins bookings with their ride and the other party's user record.
// rideMatch, when set, filters on joined ride fields and otherPartyField names
// the id used to look up the other party's name.
func (r *bookingRepository) listViews(ctx context.Context, match, rideMatch bson.M, otherPartyField string, page *utils.PaginationParams) ([]*models.BookingView, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "rides",
			"localField":   "ride_id",
			"foreignField": "_id",
			"as":           "ride",
		}}},
		{{Key: "$unwind", Value: "$ride"}},
	}

	if rideMatch != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: rideMatch}})
	}

	countPipeline := append(mongo.Pipeline{}, pipeline...)
	countPipeline = append(countPipeline, bson.D{{Key: "$count", Value: "total"}})

	cursor, err := r.collection.Aggregate(ctx, countPipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var total int64
	if cursor.Next(ctx) {
		var result struct {
			Total int64 `bson:"total"`
		}
		if err := cursor.Decode(&result); err != nil {
			cursor.Close(ctx)
			return nil, 0, fmt.Errorf("failed to decode booking count: %w", err)
		}
		total = result.Total
	}
	cursor.Close(ctx)

	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.M{"created_at": -1}}},
		bson.D{{Key: "$skip", Value: page.GetSkip()}},
		bson.D{{Key: "$limit", Value: page.GetLimit()}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   otherPartyField,
			"foreignField": "_id",
			"as":           "other_party",
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"origin_city":      "$ride.origin_city",
			"destination_city": "$ride.destination_city",
			"departure_time":   "$ride.departure_time",
			"other_party_name": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$other_party.full_name", 0}},
				"",
			}},
		}}},
		bson.D{{Key: "$project", Value: bson.M{"ride": 0, "other_party": 0}}},
	)

	cursor, err = r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var views []*models.BookingView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, 0, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return views, total, nil
}
