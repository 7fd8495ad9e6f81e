package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) interfaces.MessageRepository {
	return &messageRepository{
		collection: db.Collection("messages"),
	}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string, limit int, before time.Time, beforeID primitive.ObjectID) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !beforeID.IsZero() {
		// Keyset cursor. BSON datetimes truncate to the millisecond, so
		// paging on _id is the only cut that cannot split same-instant
		// messages across pages.
		filter["_id"] = bson.M{"$lt": beforeID}
	} else {
		filter["created_at"] = bson.M{"$lt": before}
	}

	// Newest page first, then flipped so callers always see ascending order.
	// _id breaks created_at ties in acceptance order.
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID, at time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":         messageID,
			"receiver_id": receiverID,
			"is_read":     false,
		},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark message read: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *messageRepository) ListConversations(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"sender_id": userID},
				bson.M{"receiver_id": userID},
			},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":             "$conversation_id",
			"last_message":    bson.M{"$first": "$content"},
			"last_message_at": bson.M{"$first": "$created_at"},
			"other_user_id": bson.M{"$first": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender_id", userID}},
				"$receiver_id",
				"$sender_id",
			}}},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.M{"last_message_at": -1}}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "other_user_id",
			"foreignField": "_id",
			"as":           "other_user",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"other_user_name": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$other_user.full_name", 0}},
				"",
			}},
		}}},
		{{Key: "$project", Value: bson.M{"other_user": 0}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var summaries []*models.ConversationSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	return summaries, nil
}
