package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscussionType classifies what a discussion is about
type DiscussionType string

const (
	DiscussionTypeDocument DiscussionType = "document"
	DiscussionTypeGeneral  DiscussionType = "general"
	DiscussionTypeGroup    DiscussionType = "group"
	DiscussionTypeProject  DiscussionType = "project"
)

// Privacy controls who may join a discussion without an invite code
type Privacy string

const (
	PrivacyPublic     Privacy = "public"
	PrivacyPrivate    Privacy = "private"
	PrivacyInviteOnly Privacy = "invite_only"
)

// Discussion is a named chat space owned by exactly one admin.
// MemberCount and MessageCount are maintained with atomic increments in the
// same transaction as the row changes they count; they are never recomputed.
type Discussion struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Title         string         `json:"title" gorm:"size:255;not null"`
	Description   string         `json:"description" gorm:"type:text"`
	Type          DiscussionType `json:"type" gorm:"type:varchar(20);not null;default:'general'"`
	Privacy       Privacy        `json:"privacy" gorm:"type:varchar(20);not null;default:'public'"`
	InviteCode    string         `json:"invite_code,omitempty" gorm:"size:16;uniqueIndex;not null"`
	AdminID       uuid.UUID      `json:"admin_id" gorm:"type:uuid;index;not null"`
	MemberCount   int64          `json:"member_count" gorm:"not null;default:0"`
	MessageCount  int64          `json:"message_count" gorm:"not null;default:0"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	IsPinned      bool           `json:"is_pinned" gorm:"not null;default:false"`
	IsArchived    bool           `json:"is_archived" gorm:"not null;default:false;index"`
	Tags          []string       `json:"tags" gorm:"type:text;serializer:json"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Admin User `json:"admin" gorm:"foreignKey:AdminID"`
}

// IsPublic reports whether anyone may read and join by id
func (d *Discussion) IsPublic() bool {
	return d.Privacy == PrivacyPublic
}

// IsAdmin reports whether userID owns the discussion
func (d *Discussion) IsAdmin(userID uuid.UUID) bool {
	return d.AdminID == userID
}

// ValidPrivacy reports whether p is a known privacy level
func ValidPrivacy(p Privacy) bool {
	switch p {
	case PrivacyPublic, PrivacyPrivate, PrivacyInviteOnly:
		return true
	}
	return false
}

// ValidDiscussionType reports whether t is a known discussion type
func ValidDiscussionType(t DiscussionType) bool {
	switch t {
	case DiscussionTypeDocument, DiscussionTypeGeneral, DiscussionTypeGroup, DiscussionTypeProject:
		return true
	}
	return false
}
