package worker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/pkg/mailer"
	"github.com/academvault/discussions/pkg/notification"
	"go.uber.org/zap"
)

// Sink delivers an outbox event to one channel
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev *model.OutboxEvent) error
}

// Render returns the notification title and body for an event
func Render(ev *model.OutboxEvent) (title, body string) {
	p := ev.Payload
	switch ev.Type {
	case model.NotificationMemberJoined:
		return p.DiscussionTitle, fmt.Sprintf("%s joined the discussion.", p.ActorName)
	case model.NotificationMemberLeft:
		return p.DiscussionTitle, fmt.Sprintf("%s left the discussion.", p.ActorName)
	case model.NotificationInvited:
		return "New discussion: " + p.DiscussionTitle, fmt.Sprintf("%s added you to the discussion.", p.ActorName)
	case model.NotificationDiscussionDeleted:
		return p.DiscussionTitle, fmt.Sprintf("%s deleted the discussion.", p.ActorName)
	}
	return p.DiscussionTitle, ""
}

// InAppSink writes one notification row per recipient
type InAppSink struct {
	notifications *repository.NotificationRepository
}

func NewInAppSink(notifications *repository.NotificationRepository) *InAppSink {
	return &InAppSink{notifications: notifications}
}

func (s *InAppSink) Name() string { return "in_app" }

func (s *InAppSink) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	title, body := Render(ev)
	discussionID := ev.Payload.DiscussionID
	rows := make([]model.Notification, 0, len(ev.Payload.RecipientIDs))
	for _, uid := range ev.Payload.RecipientIDs {
		rows = append(rows, model.Notification{
			UserID:       uid,
			Type:         ev.Type,
			Title:        title,
			Body:         body,
			DiscussionID: &discussionID,
		})
	}
	return s.notifications.CreateBatch(ctx, rows)
}

// Pusher is the push transport, satisfied by *notification.Pusher
type Pusher interface {
	Send(ctx context.Context, p notification.Push) ([]string, error)
}

// PushSink sends an FCM notification to every device of the recipients and
// prunes tokens FCM reports as unregistered
type PushSink struct {
	pusher Pusher
	users  *repository.UserRepository
	log    *zap.Logger
}

func NewPushSink(pusher Pusher, users *repository.UserRepository, log *zap.Logger) *PushSink {
	return &PushSink{pusher: pusher, users: users, log: log}
}

func (s *PushSink) Name() string { return "push" }

func (s *PushSink) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	tokens, err := s.users.GetDeviceTokens(ctx, ev.Payload.RecipientIDs)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	title, body := Render(ev)
	stale, err := s.pusher.Send(ctx, notification.Push{
		Tokens: tokens,
		Title:  title,
		Body:   body,
		Data: map[string]string{
			"type":          string(ev.Type),
			"discussion_id": strconv.FormatUint(uint64(ev.Payload.DiscussionID), 10),
		},
	})
	if len(stale) > 0 {
		if perr := s.users.RemoveDeviceTokens(ctx, stale); perr != nil {
			s.log.Warn("failed to prune device tokens", zap.Error(perr))
		} else {
			s.log.Info("pruned unregistered device tokens", zap.Int("count", len(stale)))
		}
	}
	return err
}

// InviteMailer is satisfied by *mailer.Mailer
type InviteMailer interface {
	SendInvite(toEmail string, inv mailer.Invite) error
}

// MailSink e-mails invitations. Other event types are ignored.
type MailSink struct {
	mailer InviteMailer
	users  *repository.UserRepository
}

func NewMailSink(m InviteMailer, users *repository.UserRepository) *MailSink {
	return &MailSink{mailer: m, users: users}
}

func (s *MailSink) Name() string { return "mail" }

func (s *MailSink) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	if ev.Type != model.NotificationInvited {
		return nil
	}
	users, err := s.users.FindByIDs(ctx, ev.Payload.RecipientIDs)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	for _, u := range users {
		err := s.mailer.SendInvite(u.Email, mailer.Invite{
			RecipientName:   u.Name,
			InviterName:     ev.Payload.ActorName,
			DiscussionTitle: ev.Payload.DiscussionTitle,
			InviteCode:      ev.Payload.InviteCode,
		})
		if err != nil {
			return fmt.Errorf("mail %s: %w", u.ID, err)
		}
	}
	return nil
}

// bestEffort logs delivery failures instead of scheduling a retry, so a
// flaky optional channel never duplicates rows written by the others
type bestEffort struct {
	Sink
	log *zap.Logger
}

// BestEffort wraps s so its errors are logged and dropped
func BestEffort(s Sink, log *zap.Logger) Sink {
	return bestEffort{Sink: s, log: log}
}

func (b bestEffort) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	if err := b.Sink.Deliver(ctx, ev); err != nil {
		b.log.Warn("best-effort sink failed",
			zap.String("sink", b.Name()),
			zap.Uint("event_id", ev.ID),
			zap.Error(err))
	}
	return nil
}
