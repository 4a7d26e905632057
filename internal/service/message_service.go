package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/academvault/discussions/internal/metrics"
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/pkg/htmlsanitize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultPollLimit    = 100
	MaxPollLimit        = 500
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200

	// RecentJoinWindow is how far back polls report new members
	RecentJoinWindow = 5 * time.Minute
)

// MessageService appends to and reads discussion message logs
type MessageService struct {
	repos       *repository.Repositories
	publisher   EventPublisher
	attachments AttachmentStore // optional
	log         *zap.Logger
}

func NewMessageService(repos *repository.Repositories, publisher EventPublisher, attachments AttachmentStore, log *zap.Logger) *MessageService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &MessageService{repos: repos, publisher: publisher, attachments: attachments, log: log}
}

// Send appends a member message. The discussion counter update precedes the
// insert so concurrent senders commit ids in order.
func (s *MessageService) Send(ctx context.Context, userID uuid.UUID, discussionID uint, req model.SendMessageRequest) (*model.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Send")
	defer span.End()
	span.SetAttributes(attribute.Int64("discussion.id", int64(discussionID)))

	content := htmlsanitize.Clean(req.Content)
	attachment := strings.TrimSpace(req.AttachmentPath)
	if content == "" && req.DocumentID == nil && attachment == "" {
		return nil, ErrEmptyMessage
	}
	if attachment != "" && s.attachments != nil {
		ok, err := s.attachments.Exists(ctx, attachment)
		if err != nil {
			return nil, fmt.Errorf("check attachment: %w", err)
		}
		if !ok {
			return nil, ErrAttachmentNotFound
		}
	}

	msg := &model.Message{
		DiscussionID:   discussionID,
		UserID:         &userID,
		Content:        content,
		Type:           messageType(req.DocumentID, attachment),
		DocumentID:     req.DocumentID,
		AttachmentPath: attachment,
		ReplyToID:      req.ReplyToID,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		acc, err := loadAccess(ctx, tx, userID, discussionID)
		if err != nil {
			return err
		}
		if err := checkCanPost(acc, userID); err != nil {
			return err
		}
		if req.ReplyToID != nil {
			if _, err := tx.Messages.FindInDiscussion(ctx, discussionID, *req.ReplyToID); err != nil {
				if repository.IsNotFound(err) {
					return ErrInvalidReply
				}
				return err
			}
		}

		now := time.Now()
		if err := tx.Discussions.RecordMessage(ctx, discussionID, now); err != nil {
			return fmt.Errorf("record message: %w", err)
		}
		if err := tx.Messages.Create(ctx, msg); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return tx.Memberships.IncrementMessageCount(ctx, discussionID, userID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.MessagesSentTotal.WithLabelValues(string(msg.Type)).Inc()

	created, err := s.repos.Messages.FindByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}
	s.resolveAttachment(ctx, created)

	recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
	if err != nil {
		s.log.Warn("publish message: load members", zap.Uint("discussion_id", discussionID), zap.Error(err))
	} else {
		s.publisher.PublishToUsers(recipients, model.WSEvent{Type: model.WSEventMessageCreated, Payload: created})
	}
	return created, nil
}

// checkCanPost requires the admin or an active member of a live, unarchived
// discussion
func checkCanPost(acc *accessContext, userID uuid.UUID) error {
	if acc.discussion.IsArchived {
		return ErrDiscussionArchived
	}
	if acc.isAdmin(userID) {
		return nil
	}
	switch {
	case acc.membership == nil:
		if acc.discussion.IsPublic() {
			return ErrNotMember
		}
		return ErrAccessDenied
	case acc.membership.Status == model.MemberStatusBanned:
		return ErrBanned
	case acc.membership.Status == model.MemberStatusMuted:
		return ErrMuted
	case !acc.membership.CanPost():
		return ErrNotMember
	}
	return nil
}

// checkCanRead requires the admin or a current member, public discussions
// included
func checkCanRead(acc *accessContext, userID uuid.UUID) error {
	if !acc.canAccess(userID) {
		return ErrAccessDenied
	}
	if !acc.isAdmin(userID) && !acc.isCurrentMember() {
		return ErrNotMember
	}
	return nil
}

func messageType(documentID *uint, attachment string) model.MessageType {
	switch {
	case documentID != nil:
		return model.MessageTypeDocument
	case attachment != "":
		return model.MessageTypeAttachment
	}
	return model.MessageTypeText
}

// Poll returns messages with id > since in ascending order, members who joined
// in the last RecentJoinWindow, and the discussion counters. Clients pass the
// returned Cursor back as since.
func (s *MessageService) Poll(ctx context.Context, userID uuid.UUID, discussionID uint, since uint, limit int) (*model.PollResponse, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Poll")
	defer span.End()
	start := time.Now()

	if limit <= 0 {
		limit = DefaultPollLimit
	}
	if limit > MaxPollLimit {
		limit = MaxPollLimit
	}

	acc, err := loadAccess(ctx, s.repos, userID, discussionID)
	if err != nil {
		return nil, err
	}
	if err := checkCanRead(acc, userID); err != nil {
		return nil, err
	}

	msgs, err := s.repos.Messages.ListSince(ctx, discussionID, since, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	cursor := since
	if len(msgs) > 0 {
		cursor = msgs[len(msgs)-1].ID
	}
	for i := range msgs {
		s.resolveAttachment(ctx, &msgs[i])
	}

	joins, err := s.repos.Memberships.RecentJoins(ctx, discussionID, time.Now().Add(-RecentJoinWindow))
	if err != nil {
		return nil, fmt.Errorf("recent joins: %w", err)
	}
	recent := make([]model.RecentJoin, 0, len(joins))
	for _, m := range joins {
		recent = append(recent, model.RecentJoin{
			UserID:   m.UserID,
			Name:     m.User.Name,
			Avatar:   m.User.Avatar,
			JoinedAt: m.JoinedAt,
		})
	}

	stats, err := s.repos.Discussions.Stats(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("discussion stats: %w", err)
	}

	metrics.PollDuration.Observe(time.Since(start).Seconds())
	metrics.PollBatchSize.Observe(float64(len(msgs)))
	span.SetAttributes(attribute.Int("messages", len(msgs)), attribute.Bool("has_more", hasMore))

	return &model.PollResponse{
		Messages:    msgs,
		RecentJoins: recent,
		Stats:       stats,
		Cursor:      cursor,
		HasMore:     hasMore,
	}, nil
}

// History pages backwards through older messages, newest first
func (s *MessageService) History(ctx context.Context, userID uuid.UUID, discussionID uint, before uint, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	acc, err := loadAccess(ctx, s.repos, userID, discussionID)
	if err != nil {
		return nil, err
	}
	if err := checkCanRead(acc, userID); err != nil {
		return nil, err
	}

	msgs, err := s.repos.Messages.ListBefore(ctx, discussionID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	for i := range msgs {
		s.resolveAttachment(ctx, &msgs[i])
	}
	return msgs, nil
}

// DeleteMessage soft-deletes a message. Authors delete their own; the admin
// and moderators delete any. Counters are not decremented.
func (s *MessageService) DeleteMessage(ctx context.Context, actorID uuid.UUID, discussionID, messageID uint) error {
	acc, err := loadAccess(ctx, s.repos, actorID, discussionID)
	if err != nil {
		return err
	}
	if !acc.canAccess(actorID) {
		return ErrAccessDenied
	}

	msg, err := s.repos.Messages.FindInDiscussion(ctx, discussionID, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrMessageNotFound
		}
		return err
	}
	isAuthor := msg.UserID != nil && *msg.UserID == actorID
	if !isAuthor && !acc.canModerate(actorID) {
		return ErrCannotDeleteMessage
	}
	if err := s.repos.Messages.SoftDelete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
	if err == nil {
		s.publisher.PublishToUsers(recipients, model.WSEvent{
			Type:    model.WSEventMessageDeleted,
			Payload: model.MessageDeletedEvent{DiscussionID: discussionID, MessageID: msg.ID},
		})
	}
	return nil
}

func (s *MessageService) resolveAttachment(ctx context.Context, msg *model.Message) {
	if s.attachments == nil || msg.AttachmentPath == "" {
		return
	}
	url, err := s.attachments.URL(ctx, msg.AttachmentPath)
	if err != nil {
		s.log.Warn("resolve attachment", zap.Uint("message_id", msg.ID), zap.Error(err))
		return
	}
	msg.AttachmentURL = url
}
