package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Discussion DTOs ==========

type CreateDiscussionRequest struct {
	Title          string         `json:"title" binding:"required,max=255"`
	Description    string         `json:"description" binding:"max=10000"`
	Type           DiscussionType `json:"type" binding:"omitempty,oneof=document general group project"`
	Privacy        Privacy        `json:"privacy" binding:"omitempty,oneof=public private invite_only"`
	Tags           []string       `json:"tags" binding:"max=20,dive,max=50"`
	InitialMembers []uuid.UUID    `json:"initial_members" binding:"max=100"`
}

// UpdateDiscussionRequest is a partial update; nil fields are left untouched.
// Privacy and type are fixed at creation and cannot be patched.
type UpdateDiscussionRequest struct {
	Title                *string   `json:"title" binding:"omitempty,min=1,max=255"`
	Description          *string   `json:"description" binding:"omitempty,max=10000"`
	Tags                 *[]string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	IsPinned             *bool     `json:"is_pinned"`
	RegenerateInviteCode bool      `json:"regenerate_invite_code"`
	InviteCode           string    `json:"invite_code" binding:"omitempty,invitecode"`
}

type RegenerateInviteCodeRequest struct {
	InviteCode string `json:"invite_code" binding:"omitempty,invitecode"` // empty = random
}

type InviteCodeResponse struct {
	InviteCode string `json:"invite_code"`
}

type JoinByCodeRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// JoinResult is returned by both join paths. Joined is false when the caller
// was already a member and nothing changed.
type JoinResult struct {
	DiscussionID uint   `json:"discussion_id"`
	Title        string `json:"title"`
	Joined       bool   `json:"joined"`
	MemberCount  int64  `json:"member_count"`
}

// DiscussionView is a discussion as seen by one user
type DiscussionView struct {
	Discussion
	MyRole   MemberRole   `json:"my_role,omitempty"`
	MyStatus MemberStatus `json:"my_status,omitempty"`
}

type DiscussionListRequest struct {
	Archived bool   `form:"archived"`
	Query    string `form:"q" binding:"max=100"`
	Tag      string `form:"tag" binding:"max=50"`
	Limit    int    `form:"limit,default=50"`
	Offset   int    `form:"offset"`
}

// ========== Membership DTOs ==========

type InviteMembersRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required,min=1,max=100"`
}

type InviteMembersResponse struct {
	Added []uuid.UUID `json:"added"` // users who were not already members
}

type UpdateMemberRequest struct {
	Status MemberStatus `json:"status" binding:"omitempty,oneof=active muted banned"`
	Role   MemberRole   `json:"role" binding:"omitempty,oneof=moderator member guest"`
}

// RecentJoin surfaces "X just joined" banners to polling clients
type RecentJoin struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	JoinedAt time.Time `json:"joined_at"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Content        string `json:"content" binding:"max=20000"`
	DocumentID     *uint  `json:"document_id"`
	AttachmentPath string `json:"attachment_path" binding:"max=500"`
	ReplyToID      *uint  `json:"reply_to_id"`
}

type PollRequest struct {
	LastMessageID uint `form:"last_message_id"`
	Limit         int  `form:"limit"`
}

type MessageListRequest struct {
	Before uint `form:"before"` // cursor: return messages with id < before
	Limit  int  `form:"limit,default=50"`
}

// DiscussionStats lets polling clients reconcile their cached counters
type DiscussionStats struct {
	MemberCount   int64      `json:"member_count"`
	MessageCount  int64      `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

type PollResponse struct {
	Messages    []Message       `json:"messages"`
	RecentJoins []RecentJoin    `json:"recent_joins"`
	Stats       DiscussionStats `json:"stats"`
	Cursor      uint            `json:"cursor"` // max id returned, or the request cursor
	HasMore     bool            `json:"has_more"`
}

// ========== Notification DTOs ==========

type NotificationListRequest struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit,default=50"`
}

type NotificationListResponse struct {
	Items       []Notification `json:"items"`
	UnreadCount int64          `json:"unread_count"`
}

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required,max=500"`
	DeviceType string `json:"device_type" binding:"required,oneof=android ios web"`
}

// ========== WebSocket Event DTOs ==========

type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventMessageCreated    = "message_created"
	WSEventMessageDeleted    = "message_deleted"
	WSEventMemberJoined      = "member_joined"
	WSEventMemberLeft        = "member_left"
	WSEventDiscussionDeleted = "discussion_deleted"
	WSEventSendMessage       = "send_message"
	WSEventTyping            = "typing"
	WSEventStopTyping        = "stop_typing"
	WSEventOnline            = "online"
	WSEventOffline           = "offline"
	WSEventError             = "error"
)

type TypingEvent struct {
	DiscussionID uint      `json:"discussion_id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

// MembershipEvent announces a join or leave; MessageID is the system message
// written for it so push clients can advance the same cursor as pollers.
type MembershipEvent struct {
	DiscussionID uint        `json:"discussion_id"`
	User         UserSummary `json:"user"`
	MessageID    uint        `json:"message_id"`
	MemberCount  int64       `json:"member_count"`
}

type MessageDeletedEvent struct {
	DiscussionID uint `json:"discussion_id"`
	MessageID    uint `json:"message_id"`
}

type DiscussionDeletedEvent struct {
	DiscussionID uint `json:"discussion_id"`
}
