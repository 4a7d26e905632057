package service

import (
	"context"

	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
)

// EventPublisher pushes realtime events to connected users after a change
// has committed. Delivery is best effort; polling remains authoritative.
type EventPublisher interface {
	PublishToUsers(userIDs []uuid.UUID, event model.WSEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishToUsers([]uuid.UUID, model.WSEvent) {}

// AttachmentStore checks and resolves attachment object keys
type AttachmentStore interface {
	Exists(ctx context.Context, objectKey string) (bool, error)
	URL(ctx context.Context, objectKey string) (string, error)
}
