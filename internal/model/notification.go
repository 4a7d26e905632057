package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names what a notification is about
type NotificationType string

const (
	NotificationMemberJoined      NotificationType = "member_joined"
	NotificationMemberLeft        NotificationType = "member_left"
	NotificationInvited           NotificationType = "discussion_invite"
	NotificationDiscussionDeleted NotificationType = "discussion_deleted"
)

// Notification is an in-app notice shown to a single user
type Notification struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	UserID       uuid.UUID        `json:"user_id" gorm:"type:uuid;index;not null"`
	Type         NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Title        string           `json:"title" gorm:"size:255;not null"`
	Body         string           `json:"body" gorm:"type:text"`
	DiscussionID *uint            `json:"discussion_id,omitempty" gorm:"index"`
	ReadAt       *time.Time       `json:"read_at"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsRead reports whether the user has seen the notification
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
