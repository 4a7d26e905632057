package model

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole defines the role of a member in a discussion
type MemberRole string

const (
	MemberRoleAdmin     MemberRole = "admin"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleMember    MemberRole = "member"
	MemberRoleGuest     MemberRole = "guest"
)

// MemberStatus is the lifecycle state of a membership row
type MemberStatus string

const (
	MemberStatusActive MemberStatus = "active"
	MemberStatusMuted  MemberStatus = "muted"
	MemberStatusBanned MemberStatus = "banned"
	MemberStatusLeft   MemberStatus = "left"
)

// CurrentStatuses are the statuses that count towards Discussion.MemberCount
var CurrentStatuses = []MemberStatus{MemberStatusActive, MemberStatusMuted}

// Membership links a user to a discussion. There is exactly one row per
// (discussion, user) pair; leaving and re-joining transition the same row.
type Membership struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	DiscussionID uint         `json:"discussion_id" gorm:"uniqueIndex:idx_membership_pair;not null"`
	UserID       uuid.UUID    `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_membership_pair;index;not null"`
	Role         MemberRole   `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Status       MemberStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	JoinedAt     time.Time    `json:"joined_at" gorm:"index;not null"`
	LeftAt       *time.Time   `json:"left_at,omitempty"`
	MessageCount int64        `json:"message_count" gorm:"not null;default:0"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Relations
	User User `json:"user" gorm:"foreignKey:UserID"`
}

// IsCurrent reports whether the membership counts as belonging to the discussion
func (m *Membership) IsCurrent() bool {
	return m.Status == MemberStatusActive || m.Status == MemberStatusMuted
}

// CanPost reports whether the member may send messages
func (m *Membership) CanPost() bool {
	return m.Status == MemberStatusActive
}

// CanModerate reports whether the member may mute, ban or delete others' messages
func (m *Membership) CanModerate() bool {
	return m.IsCurrent() && (m.Role == MemberRoleAdmin || m.Role == MemberRoleModerator)
}
