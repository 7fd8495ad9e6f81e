package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"ridepool/internal/actor"
	"ridepool/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeSession struct {
	id   primitive.ObjectID
	name string

	mu      sync.Mutex
	frames  [][]byte
	failing bool
	closed  bool
}

func newFakeSession(name string) *fakeSession {
	return &fakeSession{id: primitive.NewObjectID(), name: name}
}

func (s *fakeSession) UserID() primitive.ObjectID { return s.id }
func (s *fakeSession) UserName() string           { return s.name }

func (s *fakeSession) Push(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("connection gone")
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	s.frames = append(s.frames, copied)
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type receivedFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (s *fakeSession) received(t *testing.T) []receivedFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]receivedFrame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f receivedFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		frames = append(frames, f)
	}
	return frames
}

func (s *fakeSession) framesOfType(t *testing.T, frameType string) []receivedFrame {
	t.Helper()
	var out []receivedFrame
	for _, f := range s.received(t) {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []*models.Message
	createErr error
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *message
	f.messages = append(f.messages, &copied)
	return nil
}

// ListByConversation mirrors the store's index order, creation time with
// _id breaking ties, rather than insertion order.
func (f *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string, limit int, before time.Time, beforeID primitive.ObjectID) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !beforeID.IsZero() {
			if m.ID.Hex() >= beforeID.Hex() {
				continue
			}
		} else if !m.CreatedAt.Before(before) {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, messageID, receiverID primitive.ObjectID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessageRepo) ListConversations(ctx context.Context, userID primitive.ObjectID, limit int) ([]*models.ConversationSummary, error) {
	return nil, nil
}

func (f *fakeMessageRepo) storedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.messages))
	for i, m := range f.messages {
		ids[i] = m.ID.Hex()
	}
	return ids
}

func newChatFixture(t *testing.T) (*ChatService, *fakeMessageRepo) {
	t.Helper()
	repo := &fakeMessageRepo{}
	svc := NewChatService(actor.NewRegistry(), repo, NewNopNotifier(), testLogger(t))
	return svc, repo
}

func TestJoinAnnouncesPresenceToEveryone(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	aliceFrames := alice.framesOfType(t, "presence")
	if len(aliceFrames) != 2 {
		t.Fatalf("alice presence frames = %d, want 2", len(aliceFrames))
	}

	var last struct {
		UserID      string   `json:"userId"`
		Status      string   `json:"status"`
		ActiveUsers []string `json:"activeUsers"`
	}
	if err := json.Unmarshal(aliceFrames[1].Data, &last); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if last.UserID != bob.id.Hex() || last.Status != "joined" {
		t.Fatalf("presence = %+v, want bob joined", last)
	}
	if len(last.ActiveUsers) != 2 {
		t.Fatalf("active users = %v, want both participants", last.ActiveUsers)
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestLeaveAnnouncesPresenceToRemaining(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	svc.Leave(conv, bob)

	frames := alice.framesOfType(t, "presence")
	if len(frames) != 3 {
		t.Fatalf("alice presence frames = %d, want 3", len(frames))
	}

	var last struct {
		UserID string `json:"userId"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(frames[2].Data, &last); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if last.UserID != bob.id.Hex() || last.Status != "left" {
		t.Fatalf("presence = %+v, want bob left", last)
	}

	svc.Leave(conv, alice)
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	msg, err := svc.Send(context.Background(), conv, alice, bob.id, "hello", "text")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	stored := repo.storedIDs()
	if len(stored) != 1 || stored[0] != msg.ID.Hex() {
		t.Fatalf("stored ids = %v, want [%s]", stored, msg.ID.Hex())
	}

	for _, sess := range []*fakeSession{alice, bob} {
		frames := sess.framesOfType(t, "message")
		if len(frames) != 1 {
			t.Fatalf("%s message frames = %d, want 1", sess.name, len(frames))
		}
		var payload struct {
			ID         string `json:"id"`
			SenderID   string `json:"senderId"`
			SenderName string `json:"senderName"`
			Content    string `json:"content"`
		}
		if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if payload.ID != msg.ID.Hex() || payload.Content != "hello" || payload.SenderName != "Alice" {
			t.Fatalf("payload = %+v", payload)
		}
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestSendFailurePersistsNothingAndBroadcastsNothing(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	repo.createErr = errors.New("store down")

	_, err := svc.Send(context.Background(), conv, alice, bob.id, "hello", "text")
	if err == nil {
		t.Fatal("expected error")
	}

	if frames := alice.framesOfType(t, "message"); len(frames) != 0 {
		t.Fatalf("message frames = %d, want 0", len(frames))
	}

	svc.Leave(conv, alice)
}

func TestBroadcastOrderMatchesStoreOrder(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	const perSender = 20
	var wg sync.WaitGroup
	for _, sess := range []*fakeSession{alice, bob} {
		wg.Add(1)
		go func(sess *fakeSession) {
			defer wg.Done()
			other := alice.id
			if sess == alice {
				other = bob.id
			}
			for i := 0; i < perSender; i++ {
				if _, err := svc.Send(context.Background(), conv, sess, other, fmt.Sprintf("%s %d", sess.name, i), "text"); err != nil {
					t.Errorf("Send: %v", err)
					return
				}
			}
		}(sess)
	}
	wg.Wait()

	stored := repo.storedIDs()
	if len(stored) != 2*perSender {
		t.Fatalf("stored = %d, want %d", len(stored), 2*perSender)
	}

	for _, sess := range []*fakeSession{alice, bob} {
		frames := sess.framesOfType(t, "message")
		if len(frames) != len(stored) {
			t.Fatalf("%s received %d messages, want %d", sess.name, len(frames), len(stored))
		}
		for i, f := range frames {
			var payload struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(f.Data, &payload); err != nil {
				t.Fatalf("unmarshal message: %v", err)
			}
			if payload.ID != stored[i] {
				t.Fatalf("%s frame %d is %s, want %s", sess.name, i, payload.ID, stored[i])
			}
		}
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestTypingExcludesSender(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	if err := svc.Typing(context.Background(), conv, alice, true); err != nil {
		t.Fatalf("Typing: %v", err)
	}

	if frames := alice.framesOfType(t, "typing"); len(frames) != 0 {
		t.Fatalf("sender typing frames = %d, want 0", len(frames))
	}
	frames := bob.framesOfType(t, "typing")
	if len(frames) != 1 {
		t.Fatalf("receiver typing frames = %d, want 1", len(frames))
	}

	var payload struct {
		UserID   string `json:"userId"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal typing: %v", err)
	}
	if payload.UserID != alice.id.Hex() || !payload.IsTyping {
		t.Fatalf("payload = %+v", payload)
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestMarkReadBroadcastsReceiptOnce(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	msg, err := svc.Send(context.Background(), conv, alice, bob.id, "hello", "text")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := svc.MarkRead(context.Background(), conv, bob, msg.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	// Second receipt for the same message is dropped
	if err := svc.MarkRead(context.Background(), conv, bob, msg.ID); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	// Only the addressee can mark a message read
	if err := svc.MarkRead(context.Background(), conv, alice, msg.ID); err != nil {
		t.Fatalf("MarkRead by sender: %v", err)
	}

	frames := alice.framesOfType(t, "read")
	if len(frames) != 1 {
		t.Fatalf("read frames = %d, want 1", len(frames))
	}

	var payload struct {
		MessageID string `json:"messageId"`
		ReadBy    string `json:"readBy"`
	}
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal read: %v", err)
	}
	if payload.MessageID != msg.ID.Hex() || payload.ReadBy != bob.id.Hex() {
		t.Fatalf("payload = %+v", payload)
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestFailedPushDetachesAndClosesSession(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if err := svc.Join(context.Background(), conv, bob); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	bob.mu.Lock()
	bob.failing = true
	bob.mu.Unlock()

	msg, err := svc.Send(context.Background(), conv, alice, bob.id, "hello", "text")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The message still persisted and still reached the healthy session
	if stored := repo.storedIDs(); len(stored) != 1 || stored[0] != msg.ID.Hex() {
		t.Fatalf("stored ids = %v", stored)
	}
	if frames := alice.framesOfType(t, "message"); len(frames) != 1 {
		t.Fatalf("alice message frames = %d, want 1", len(frames))
	}
	if !bob.isClosed() {
		t.Fatal("failed session was not closed")
	}

	// Later broadcasts no longer try the dead session
	if _, err := svc.Send(context.Background(), conv, alice, bob.id, "again", "text"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	svc.Leave(conv, alice)
	svc.Leave(conv, bob)
}

func TestHistoryRequiresParticipant(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	if err := svc.Join(context.Background(), conv, alice); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if _, err := svc.Send(context.Background(), conv, alice, bob.id, "hello", "text"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	svc.Leave(conv, alice)

	messages, err := svc.History(context.Background(), conv, bob.id, 0, time.Time{}, primitive.NilObjectID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Fatalf("messages = %+v", messages)
	}

	if _, err := svc.History(context.Background(), conv, primitive.NewObjectID(), 0, time.Time{}, primitive.NilObjectID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("outsider err = %v, want ErrNotAllowed", err)
	}

	if _, err := svc.History(context.Background(), "not-a-conversation", bob.id, 0, time.Time{}, primitive.NilObjectID); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("malformed id err = %v, want ErrNotAllowed", err)
	}
}

func TestHistoryOrdersSameInstantMessagesByID(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	// Store timestamps truncate to the millisecond, so bursts share an
	// instant; ids must decide the order then.
	at := time.Now().Truncate(time.Millisecond)
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()
	third := primitive.NewObjectID()
	for _, id := range []primitive.ObjectID{third, first, second} {
		if err := repo.Create(context.Background(), &models.Message{
			ID:             id,
			ConversationID: conv,
			SenderID:       alice.id,
			ReceiverID:     bob.id,
			Content:        "burst",
			CreatedAt:      at,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	messages, err := svc.History(context.Background(), conv, bob.id, 0, time.Time{}, primitive.NilObjectID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(messages))
	}
	for i, want := range []primitive.ObjectID{first, second, third} {
		if messages[i].ID != want {
			t.Fatalf("message %d = %s, want %s", i, messages[i].ID.Hex(), want.Hex())
		}
	}
}

func TestHistoryPagesPreciselyByMessageID(t *testing.T) {
	svc, repo := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	at := time.Now().Truncate(time.Millisecond)
	var ids []primitive.ObjectID
	for i := 0; i < 3; i++ {
		id := primitive.NewObjectID()
		ids = append(ids, id)
		if err := repo.Create(context.Background(), &models.Message{
			ID:             id,
			ConversationID: conv,
			SenderID:       alice.id,
			ReceiverID:     bob.id,
			Content:        fmt.Sprintf("m%d", i),
			CreatedAt:      at,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// Paging by time alone cannot separate these; the id cursor must
	// return exactly the two older siblings.
	messages, err := svc.History(context.Background(), conv, bob.id, 0, time.Time{}, ids[2])
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].ID != ids[0] || messages[1].ID != ids[1] {
		t.Fatalf("page = [%s %s], want [%s %s]",
			messages[0].ID.Hex(), messages[1].ID.Hex(), ids[0].Hex(), ids[1].Hex())
	}
}

func TestJoinAbandonedByCallerLeavesNoSession(t *testing.T) {
	svc, _ := newChatFixture(t)
	alice := newFakeSession("Alice")
	bob := newFakeSession("Bob")
	conv := models.ConversationID(alice.id, bob.id)

	// Occupy the conversation's worker so the join queues behind it and
	// the caller's deadline expires while waiting.
	release := make(chan struct{})
	blocked := make(chan struct{})
	go func() {
		_ = svc.registry.Do(context.Background(), convKey(conv), func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	joinErr := make(chan error, 1)
	go func() { joinErr <- svc.Join(ctx, conv, alice) }()

	time.Sleep(30 * time.Millisecond)
	close(release)

	if err := <-joinErr; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Join error = %v, want deadline exceeded", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.registry.Active() == 0 && svc.lookupRoom(conv) == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if svc.lookupRoom(conv) != nil {
		t.Fatal("room still holds the abandoned session")
	}
	if got := svc.registry.Active(); got != 0 {
		t.Fatalf("active workers = %d, want 0", got)
	}
}
