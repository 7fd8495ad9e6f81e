package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeLocation ContentType = "location"
)

// Message is one persisted chat message. Messages for a conversation are
// stored in the exact order the conversation's actor accepted them.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID string             `json:"conversation_id" bson:"conversation_id" validate:"required"`
	SenderID       primitive.ObjectID `json:"sender_id" bson:"sender_id" validate:"required"`
	ReceiverID     primitive.ObjectID `json:"receiver_id" bson:"receiver_id" validate:"required"`
	Content        string             `json:"content" bson:"content" validate:"required"`
	ContentType    ContentType        `json:"content_type" bson:"content_type" default:"text"`
	IsRead         bool               `json:"is_read" bson:"is_read"`
	ReadAt         *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	SenderName     string             `json:"sender_name,omitempty" bson:"sender_name,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID string             `json:"conversation_id" bson:"_id"`
	OtherUserID    primitive.ObjectID `json:"other_user_id" bson:"other_user_id"`
	OtherUserName  string             `json:"other_user_name" bson:"other_user_name"`
	LastMessage    string             `json:"last_message" bson:"last_message"`
	LastMessageAt  time.Time          `json:"last_message_at" bson:"last_message_at"`
	UnreadCount    int                `json:"unread_count" bson:"unread_count"`
}

// ConversationID derives the stable identifier for the thread between two
// users. The pair is sorted so both participants compute the same id.
func ConversationID(a, b primitive.ObjectID) string {
	ids := []string{a.Hex(), b.Hex()}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// ConversationParticipants splits a conversation id back into its two
// participant ids. It returns false when the id is malformed.
func ConversationParticipants(conversationID string) (primitive.ObjectID, primitive.ObjectID, bool) {
	parts := strings.Split(conversationID, "_")
	if len(parts) != 2 {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	first, err := primitive.ObjectIDFromHex(parts[0])
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	second, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return first, second, true
}
