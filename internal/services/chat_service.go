package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ridepool/internal/actor"
	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"
	ws "ridepool/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatService owns two-party conversations. Every operation for one
// conversation runs through the actor registry under the conversation's key,
// which is what gives messages their total order: the order the actor
// accepts sends is the order they are persisted and the order every live
// connection sees them.
type ChatService struct {
	registry *actor.Registry
	messages interfaces.MessageRepository
	notifier Notifier
	logger   *logger.Logger

	// rooms maps conversation id to its connection multiplexer. The map
	// itself is guarded by mu; a room's contents are only ever touched from
	// within that conversation's serialized operations.
	mu    sync.Mutex
	rooms map[string]*ws.Room
}

func NewChatService(
	registry *actor.Registry,
	messages interfaces.MessageRepository,
	notifier Notifier,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		registry: registry,
		messages: messages,
		notifier: notifier,
		logger:   log,
		rooms:    make(map[string]*ws.Room),
	}
}

func convKey(conversationID string) string {
	return "conv:" + conversationID
}

type outboundFrame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type messagePayload struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	ReceiverID  string `json:"receiverId"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	IsRead      bool   `json:"isRead"`
	CreatedAt   int64  `json:"createdAt"`
}

type presencePayload struct {
	UserID      string   `json:"userId"`
	Status      string   `json:"status"`
	ActiveUsers []string `json:"activeUsers"`
}

type typingPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type readPayload struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
	ReadAt    int64  `json:"readAt"`
}

// Join attaches a live connection to its conversation and announces presence
// to everyone attached, the new connection included. The conversation's
// worker stays pinned until the matching Leave.
func (s *ChatService) Join(ctx context.Context, conversationID string, sess ws.Session) error {
	key := convKey(conversationID)
	s.registry.Pin(key)

	err := s.registry.Do(ctx, key, func(ctx context.Context) error {
		room := s.room(conversationID)
		room.Attach(sess)
		s.broadcastPresence(conversationID, room, sess.UserID(), "joined")
		return nil
	})
	if err != nil {
		// The caller gave up, but the queued attach still runs on the
		// conversation's worker. Leave queues a detach behind it so the
		// session cannot linger in the room, and releases the pin.
		s.Leave(conversationID, sess)
		return err
	}

	s.logger.LogChatEvent(conversationID, "joined", map[string]interface{}{
		"user_id": sess.UserID().Hex(),
	})
	return nil
}

// Leave detaches the connection and announces updated presence. It is
// idempotent: an error-triggered removal racing the explicit close is
// harmless, but the pin is always released exactly once.
func (s *ChatService) Leave(conversationID string, sess ws.Session) {
	key := convKey(conversationID)

	_ = s.registry.Do(context.Background(), key, func(ctx context.Context) error {
		room := s.lookupRoom(conversationID)
		if room == nil {
			return nil
		}
		room.Detach(sess)
		if room.Len() == 0 {
			s.dropRoom(conversationID)
			return nil
		}
		s.broadcastPresence(conversationID, room, sess.UserID(), "left")
		return nil
	})

	s.registry.Unpin(key)
	s.logger.LogChatEvent(conversationID, "left", map[string]interface{}{
		"user_id": sess.UserID().Hex(),
	})
}

// Send persists the message and then broadcasts it to every attached
// connection. Persist-before-broadcast means a client that queries history
// right after receiving the frame always finds the message present.
func (s *ChatService) Send(ctx context.Context, conversationID string, sender ws.Session, receiverID primitive.ObjectID, content, contentType string) (*models.Message, error) {
	var message *models.Message
	err := s.registry.Do(ctx, convKey(conversationID), func(ctx context.Context) error {
		m := &models.Message{
			ID:             primitive.NewObjectID(),
			ConversationID: conversationID,
			SenderID:       sender.UserID(),
			ReceiverID:     receiverID,
			Content:        content,
			ContentType:    models.ContentType(contentType),
			SenderName:     sender.UserName(),
			CreatedAt:      time.Now(),
		}
		if err := s.messages.Create(ctx, m); err != nil {
			return fmt.Errorf("persist message: %w", err)
		}

		room := s.lookupRoom(conversationID)
		s.broadcastFrame(conversationID, room, "message", messagePayload{
			ID:          m.ID.Hex(),
			SenderID:    m.SenderID.Hex(),
			SenderName:  m.SenderName,
			ReceiverID:  m.ReceiverID.Hex(),
			Content:     m.Content,
			ContentType: string(m.ContentType),
			IsRead:      false,
			CreatedAt:   m.CreatedAt.Unix(),
		}, primitive.NilObjectID)

		if room == nil || !containsUser(room.ActiveUsers(), receiverID) {
			if err := s.notifier.NotifyMessage(ctx, m); err != nil {
				s.logger.WithError(err).WithConversationID(conversationID).Warn("offline notification failed")
			}
		}

		message = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// Typing broadcasts an ephemeral typing indicator to everyone except the
// sender. Nothing is persisted.
func (s *ChatService) Typing(ctx context.Context, conversationID string, sender ws.Session, isTyping bool) error {
	return s.registry.Do(ctx, convKey(conversationID), func(ctx context.Context) error {
		room := s.lookupRoom(conversationID)
		s.broadcastFrame(conversationID, room, "typing", typingPayload{
			UserID:   sender.UserID().Hex(),
			UserName: sender.UserName(),
			IsTyping: isTyping,
		}, sender.UserID())
		return nil
	})
}

// MarkRead flags a message addressed to the reader as read and broadcasts
// the receipt.
func (s *ChatService) MarkRead(ctx context.Context, conversationID string, reader ws.Session, messageID primitive.ObjectID) error {
	return s.registry.Do(ctx, convKey(conversationID), func(ctx context.Context) error {
		now := time.Now()
		updated, err := s.messages.MarkRead(ctx, messageID, reader.UserID(), now)
		if err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		if !updated {
			return nil
		}

		room := s.lookupRoom(conversationID)
		s.broadcastFrame(conversationID, room, "read", readPayload{
			MessageID: messageID.Hex(),
			ReadBy:    reader.UserID().Hex(),
			ReadAt:    now.Unix(),
		}, primitive.NilObjectID)
		return nil
	})
}

// History returns up to limit persisted messages older than the cursor,
// oldest first. A non-zero beforeID pages precisely by message id; otherwise
// before is the cut. The caller must be one of the conversation's
// participants.
func (s *ChatService) History(ctx context.Context, conversationID string, userID primitive.ObjectID, limit int, before time.Time, beforeID primitive.ObjectID) ([]*models.Message, error) {
	first, second, ok := models.ConversationParticipants(conversationID)
	if !ok {
		return nil, ErrNotAllowed
	}
	if userID != first && userID != second {
		return nil, ErrNotAllowed
	}

	if limit <= 0 {
		limit = utils.DefaultHistoryLimit
	}
	if limit > utils.MaxHistoryLimit {
		limit = utils.MaxHistoryLimit
	}
	if before.IsZero() {
		before = time.Now()
	}

	return s.messages.ListByConversation(ctx, conversationID, limit, before, beforeID)
}

// Conversations lists the caller's conversation summaries, newest first.
func (s *ChatService) Conversations(ctx context.Context, userID primitive.ObjectID) ([]*models.ConversationSummary, error) {
	return s.messages.ListConversations(ctx, userID, utils.DefaultHistoryLimit)
}

// Dispatcher binds a conversation id to the service so a websocket client
// can hand decoded frames straight to the owning actor.
func (s *ChatService) Dispatcher(conversationID string) ws.Dispatcher {
	return &connDispatcher{svc: s, conversationID: conversationID}
}

type connDispatcher struct {
	svc            *ChatService
	conversationID string
}

func (d *connDispatcher) OnMessage(sess ws.Session, receiverID primitive.ObjectID, content, contentType string) {
	if _, err := d.svc.Send(context.Background(), d.conversationID, sess, receiverID, content, contentType); err != nil {
		d.svc.logger.WithError(err).WithConversationID(d.conversationID).Error("send failed")
	}
}

func (d *connDispatcher) OnTyping(sess ws.Session, isTyping bool) {
	if err := d.svc.Typing(context.Background(), d.conversationID, sess, isTyping); err != nil {
		d.svc.logger.WithError(err).WithConversationID(d.conversationID).Error("typing broadcast failed")
	}
}

func (d *connDispatcher) OnRead(sess ws.Session, messageID primitive.ObjectID) {
	if err := d.svc.MarkRead(context.Background(), d.conversationID, sess, messageID); err != nil {
		d.svc.logger.WithError(err).WithConversationID(d.conversationID).Error("read receipt failed")
	}
}

func (d *connDispatcher) OnClose(sess ws.Session) {
	d.svc.Leave(d.conversationID, sess)
}

func (s *ChatService) room(conversationID string) *ws.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[conversationID]
	if !ok {
		room = ws.NewRoom()
		s.rooms[conversationID] = room
	}
	return room
}

func (s *ChatService) lookupRoom(conversationID string) *ws.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[conversationID]
}

func (s *ChatService) dropRoom(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, conversationID)
}

// broadcastFrame pushes one frame to the room. A push failure detaches only
// the failed connection and closes it; persistence and delivery to the rest
// are unaffected.
func (s *ChatService) broadcastFrame(conversationID string, room *ws.Room, frameType string, data interface{}, exclude primitive.ObjectID) {
	if room == nil {
		return
	}

	payload, err := json.Marshal(outboundFrame{
		Type:      frameType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		s.logger.WithError(err).WithConversationID(conversationID).Error("frame encode failed")
		return
	}

	failed := room.Broadcast(payload, exclude)
	for _, sess := range failed {
		sess.Close()
		s.logger.WithConversationID(conversationID).WithUserID(sess.UserID()).Warn("detached dead connection")
	}
}

func (s *ChatService) broadcastPresence(conversationID string, room *ws.Room, userID primitive.ObjectID, status string) {
	s.broadcastFrame(conversationID, room, "presence", presencePayload{
		UserID:      userID.Hex(),
		Status:      status,
		ActiveUsers: room.ActiveUsers(),
	}, primitive.NilObjectID)
}

func containsUser(users []string, id primitive.ObjectID) bool {
	hex := id.Hex()
	for _, u := range users {
		if u == hex {
			return true
		}
	}
	return false
}
