package interfaces

import (
	"context"
	"time"

	"ridepool/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error

	// ListByConversation returns up to limit messages older than the cursor,
	// ascending by creation time with _id breaking timestamp ties. When
	// beforeID is set it is the cursor; otherwise before is.
	ListByConversation(ctx context.Context, conversationID string, limit int, before time.Time, beforeID primitive.ObjectID) ([]*models.Message, error)

	// MarkRead flags the message as read if it is addressed to receiverID.
	// It reports whether a message was actually updated.
	MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID, at time.Time) (bool, error)

	ListConversations(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.ConversationSummary, error)
}
