package service

import (
	"context"
	"fmt"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("academvault/discussions/service")

// accessContext is what a caller is to a discussion
type accessContext struct {
	discussion *model.Discussion
	membership *model.Membership // nil when the user never joined
}

func (a *accessContext) isAdmin(userID uuid.UUID) bool {
	return a.discussion.IsAdmin(userID)
}

func (a *accessContext) isCurrentMember() bool {
	return a.membership != nil && a.membership.IsCurrent()
}

func (a *accessContext) isBanned() bool {
	return a.membership != nil && a.membership.Status == model.MemberStatusBanned
}

// canAccess is true for public discussions, the admin, or a current member.
// A banned user never has access.
func (a *accessContext) canAccess(userID uuid.UUID) bool {
	if a.isAdmin(userID) {
		return true
	}
	if a.isBanned() {
		return false
	}
	return a.discussion.IsPublic() || a.isCurrentMember()
}

func (a *accessContext) canModerate(userID uuid.UUID) bool {
	return a.isAdmin(userID) || (a.membership != nil && a.membership.CanModerate())
}

// loadAccess reads the discussion and the user's membership row
func loadAccess(ctx context.Context, repos *repository.Repositories, userID uuid.UUID, discussionID uint) (*accessContext, error) {
	d, err := repos.Discussions.FindByID(ctx, discussionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDiscussionNotFound
		}
		return nil, fmt.Errorf("load discussion: %w", err)
	}
	m, err := repos.Memberships.FindByPair(ctx, discussionID, userID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, fmt.Errorf("load membership: %w", err)
		}
		m = nil
	}
	return &accessContext{discussion: d, membership: m}, nil
}

// appendSystemMessage writes a platform-authored message. The caller must
// already have updated the discussion row in the same transaction.
func appendSystemMessage(ctx context.Context, tx *repository.Repositories, discussionID uint, content string) (*model.Message, error) {
	msg := &model.Message{
		DiscussionID: discussionID,
		Content:      content,
		Type:         model.MessageTypeSystem,
	}
	if err := tx.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("append system message: %w", err)
	}
	return msg, nil
}

func joinedText(name string) string {
	return fmt.Sprintf("%s joined the discussion.", name)
}

func leftText(name string) string {
	return fmt.Sprintf("%s left the discussion.", name)
}

// withoutUser drops id from ids
func withoutUser(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
