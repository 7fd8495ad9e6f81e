package services

import (
	"context"

	"ridepool/internal/models"
)

// Notifier is the boundary to offline push delivery. It is called after a
// message is persisted when the receiver has no live connection; delivery
// itself is an external concern.
type Notifier interface {
	NotifyMessage(ctx context.Context, message *models.Message) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyMessage(ctx context.Context, message *models.Message) error {
	return nil
}

// NewNopNotifier returns a Notifier that does nothing.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}
