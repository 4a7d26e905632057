package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus tracks delivery of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusDone    OutboxStatus = "done"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// OutboxEvent is a durable record of a membership change, written in the
// same transaction as the change and delivered to notification sinks later.
type OutboxEvent struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Type        NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Payload     EventPayload     `json:"payload" gorm:"type:text;serializer:json"`
	Status      OutboxStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_outbox_pending,priority:1"`
	Attempts    int              `json:"attempts" gorm:"not null;default:0"`
	LastError   string           `json:"last_error,omitempty" gorm:"type:text"`
	AvailableAt time.Time        `json:"available_at" gorm:"not null;index:idx_outbox_pending,priority:2"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// EventPayload carries everything the sinks need without re-reading the
// discussion, which may have been deleted by the time the event is delivered.
type EventPayload struct {
	DiscussionID    uint        `json:"discussion_id"`
	DiscussionTitle string      `json:"discussion_title"`
	ActorID         uuid.UUID   `json:"actor_id"`
	ActorName       string      `json:"actor_name"`
	RecipientIDs    []uuid.UUID `json:"recipient_ids"`
	InviteCode      string      `json:"invite_code,omitempty"`
}
