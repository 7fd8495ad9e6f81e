package websocket

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is one live connection attached to a conversation. The owning
// actor holds sessions only through this interface; a session holds no
// reference back into actor internals beyond its push callback.
type Session interface {
	UserID() primitive.ObjectID
	UserName() string

	// Push queues an outbound frame. An error marks the session dead; the
	// room detaches it and the caller tears the connection down.
	Push(data []byte) error

	Close()
}

// Room is the connection multiplexer for one conversation. It is not safe
// for concurrent use on its own: attach, detach and broadcast are only ever
// called from within the conversation actor's serialized operations.
type Room struct {
	sessions map[Session]struct{}
}

func NewRoom() *Room {
	return &Room{
		sessions: make(map[Session]struct{}),
	}
}

func (r *Room) Attach(s Session) {
	r.sessions[s] = struct{}{}
}

// Detach removes s and reports whether it was attached. It is idempotent so
// an error-triggered removal racing an explicit leave is harmless.
func (r *Room) Detach(s Session) bool {
	if _, ok := r.sessions[s]; !ok {
		return false
	}
	delete(r.sessions, s)
	return true
}

func (r *Room) Len() int {
	return len(r.sessions)
}

// ActiveUsers returns the ids of currently attached users, sorted for a
// stable presence payload.
func (r *Room) ActiveUsers() []string {
	users := make([]string, 0, len(r.sessions))
	seen := make(map[string]struct{}, len(r.sessions))
	for s := range r.sessions {
		id := s.UserID().Hex()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Broadcast pushes payload to every attached session except those belonging
// to excludeUser (NilObjectID excludes nobody). It iterates a snapshot so
// detaching a failed session mid-loop cannot corrupt iteration, and returns
// the sessions whose push failed, already detached.
func (r *Room) Broadcast(payload []byte, excludeUser primitive.ObjectID) []Session {
	snapshot := make([]Session, 0, len(r.sessions))
	for s := range r.sessions {
		snapshot = append(snapshot, s)
	}

	var failed []Session
	for _, s := range snapshot {
		if !excludeUser.IsZero() && s.UserID() == excludeUser {
			continue
		}
		if err := s.Push(payload); err != nil {
			delete(r.sessions, s)
			failed = append(failed, s)
		}
	}
	return failed
}
