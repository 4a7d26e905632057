package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeDocument   MessageType = "document"
	MessageTypeAttachment MessageType = "attachment"
	MessageTypeSystem     MessageType = "system"
)

// Message is one entry of a discussion's append-only log.
// ID is assigned by the database and doubles as the polling cursor.
type Message struct {
	ID             uint           `json:"id" gorm:"primaryKey;index:idx_message_cursor,priority:2"`
	DiscussionID   uint           `json:"discussion_id" gorm:"not null;index:idx_message_cursor,priority:1"`
	UserID         *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;index"` // nil for system messages
	Content        string         `json:"content" gorm:"type:text"`
	Type           MessageType    `json:"message_type" gorm:"column:message_type;type:varchar(20);not null;default:'text'"`
	DocumentID     *uint          `json:"document_id,omitempty"`
	AttachmentPath string         `json:"attachment_path,omitempty" gorm:"size:500"`
	AttachmentURL  string         `json:"attachment_url,omitempty" gorm:"-"` // resolved on read
	ReplyToID      *uint          `json:"reply_to_id,omitempty" gorm:"index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Author  *User    `json:"author,omitempty" gorm:"foreignKey:UserID"`
	ReplyTo *Message `json:"reply_to,omitempty" gorm:"foreignKey:ReplyToID"`
}

// IsSystem reports whether the platform authored the message
func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}
