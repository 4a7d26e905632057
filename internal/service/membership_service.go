package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/academvault/discussions/internal/metrics"
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/pkg/invitecode"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	joinPathCode = "code"
	joinPathID   = "id"
)

// MembershipService resolves joins and leaves and manages members
type MembershipService struct {
	repos     *repository.Repositories
	publisher EventPublisher
	log       *zap.Logger
}

func NewMembershipService(repos *repository.Repositories, publisher EventPublisher, log *zap.Logger) *MembershipService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &MembershipService{repos: repos, publisher: publisher, log: log}
}

// JoinByCode joins the discussion holding code. Codes are case-insensitive.
// Re-joining as a current member succeeds with Joined=false and changes nothing.
func (s *MembershipService) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*model.JoinResult, error) {
	ctx, span := tracer.Start(ctx, "MembershipService.JoinByCode")
	defer span.End()

	code = invitecode.Normalize(code)
	if invitecode.Validate(code) != nil {
		metrics.JoinsTotal.WithLabelValues(joinPathCode, "not_found").Inc()
		return nil, ErrInviteCodeInvalid
	}

	res, msg, err := s.join(ctx, userID, func(tx *repository.Repositories) (*model.Discussion, error) {
		d, err := tx.Discussions.FindByInviteCode(ctx, code)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrInviteCodeInvalid
			}
			return nil, err
		}
		if d.IsArchived {
			return nil, ErrInviteCodeInvalid
		}
		return d, nil
	})
	if errors.Is(err, ErrAlreadyMember) {
		metrics.JoinsTotal.WithLabelValues(joinPathCode, "already_member").Inc()
		span.SetAttributes(attribute.Bool("joined", false))
		return res, nil
	}
	if err != nil {
		metrics.JoinsTotal.WithLabelValues(joinPathCode, resultLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "join by code failed")
		return nil, err
	}

	metrics.JoinsTotal.WithLabelValues(joinPathCode, "joined").Inc()
	span.SetAttributes(attribute.Bool("joined", true), attribute.Int64("discussion.id", int64(res.DiscussionID)))
	s.publishMembership(ctx, model.WSEventMemberJoined, res.DiscussionID, userID, msg, res.MemberCount)
	return res, nil
}

// JoinByID joins a public discussion directly. Unlike JoinByCode, joining
// again as a current member is a conflict.
func (s *MembershipService) JoinByID(ctx context.Context, userID uuid.UUID, discussionID uint) (*model.JoinResult, error) {
	ctx, span := tracer.Start(ctx, "MembershipService.JoinByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("discussion.id", int64(discussionID)))

	res, msg, err := s.join(ctx, userID, func(tx *repository.Repositories) (*model.Discussion, error) {
		d, err := tx.Discussions.FindByID(ctx, discussionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrDiscussionNotFound
			}
			return nil, err
		}
		if d.IsArchived {
			return nil, ErrDiscussionNotFound
		}
		if !d.IsPublic() {
			return nil, ErrNotPublic
		}
		return d, nil
	})
	if err != nil {
		metrics.JoinsTotal.WithLabelValues(joinPathID, resultLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "join by id failed")
		return nil, err
	}

	metrics.JoinsTotal.WithLabelValues(joinPathID, "joined").Inc()
	s.publishMembership(ctx, model.WSEventMemberJoined, res.DiscussionID, userID, msg, res.MemberCount)
	return res, nil
}

// join runs the atomic join sequence against the discussion find resolves.
// On ErrAlreadyMember the transaction is rolled back and the result still
// describes the discussion.
func (s *MembershipService) join(
	ctx context.Context,
	userID uuid.UUID,
	find func(tx *repository.Repositories) (*model.Discussion, error),
) (*model.JoinResult, *model.Message, error) {
	var (
		res *model.JoinResult
		msg *model.Message
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		d, err := find(tx)
		if err != nil {
			return err
		}
		res = &model.JoinResult{DiscussionID: d.ID, Title: d.Title, MemberCount: d.MemberCount}

		user, err := tx.Users.FindByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		msg, err = admitUser(ctx, tx, d, user, model.MemberRoleMember, time.Now())
		if err != nil {
			return err
		}

		stats, err := tx.Discussions.Stats(ctx, d.ID)
		if err != nil {
			return err
		}
		res.Joined = true
		res.MemberCount = stats.MemberCount

		return enqueueEvent(ctx, tx, model.NotificationMemberJoined, model.EventPayload{
			DiscussionID:    d.ID,
			DiscussionTitle: d.Title,
			ActorID:         user.ID,
			ActorName:       user.Name,
			RecipientIDs:    withoutUser([]uuid.UUID{d.AdminID}, user.ID),
		})
	})
	return res, msg, err
}

// admitUser makes user a current member of d inside tx. It inserts a new row
// or reactivates a left one, bumps member_count, and then appends the joined
// message. ErrAlreadyMember and ErrBanned leave nothing written.
func admitUser(ctx context.Context, tx *repository.Repositories, d *model.Discussion, user *model.User, role model.MemberRole, now time.Time) (*model.Message, error) {
	m, err := tx.Memberships.FindByPair(ctx, d.ID, user.ID)
	switch {
	case err == nil:
		if m.IsCurrent() {
			return nil, ErrAlreadyMember
		}
		if m.Status == model.MemberStatusBanned {
			return nil, ErrBanned
		}
		ok, err := tx.Memberships.Reactivate(ctx, m.ID, role, now)
		if err != nil {
			return nil, fmt.Errorf("reactivate membership: %w", err)
		}
		if !ok {
			return nil, ErrAlreadyMember
		}
	case repository.IsNotFound(err):
		err := tx.Memberships.Create(ctx, &model.Membership{
			DiscussionID: d.ID,
			UserID:       user.ID,
			Role:         role,
			Status:       model.MemberStatusActive,
			JoinedAt:     now,
		})
		if errors.Is(err, repository.ErrDuplicateMembership) {
			return nil, ErrAlreadyMember
		}
		if err != nil {
			return nil, fmt.Errorf("create membership: %w", err)
		}
	default:
		return nil, fmt.Errorf("load membership: %w", err)
	}

	if err := tx.Discussions.IncrementMemberCount(ctx, d.ID); err != nil {
		return nil, fmt.Errorf("increment member count: %w", err)
	}
	return appendSystemMessage(ctx, tx, d.ID, joinedText(user.Name))
}

// Leave moves the caller's membership to left. The admin cannot leave.
func (s *MembershipService) Leave(ctx context.Context, userID uuid.UUID, discussionID uint) error {
	ctx, span := tracer.Start(ctx, "MembershipService.Leave")
	defer span.End()

	var (
		msg   *model.Message
		count int64
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		acc, err := loadAccess(ctx, tx, userID, discussionID)
		if err != nil {
			return err
		}
		d := acc.discussion
		if d.IsAdmin(userID) {
			return ErrAdminCannotLeave
		}
		if !acc.isCurrentMember() {
			return ErrNotMember
		}

		ok, err := tx.Memberships.MarkLeft(ctx, acc.membership.ID, time.Now())
		if err != nil {
			return fmt.Errorf("mark left: %w", err)
		}
		if !ok {
			return ErrNotMember
		}
		if err := tx.Discussions.DecrementMemberCount(ctx, d.ID); err != nil {
			return fmt.Errorf("decrement member count: %w", err)
		}

		user, err := tx.Users.FindByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		msg, err = appendSystemMessage(ctx, tx, d.ID, leftText(user.Name))
		if err != nil {
			return err
		}
		stats, err := tx.Discussions.Stats(ctx, d.ID)
		if err != nil {
			return err
		}
		count = stats.MemberCount

		return enqueueEvent(ctx, tx, model.NotificationMemberLeft, model.EventPayload{
			DiscussionID:    d.ID,
			DiscussionTitle: d.Title,
			ActorID:         user.ID,
			ActorName:       user.Name,
			RecipientIDs:    []uuid.UUID{d.AdminID},
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	metrics.LeavesTotal.Inc()
	s.publishMembership(ctx, model.WSEventMemberLeft, discussionID, userID, msg, count)
	return nil
}

// CanAccess reports whether the user may read the discussion's messages
func (s *MembershipService) CanAccess(ctx context.Context, userID uuid.UUID, discussionID uint) (bool, error) {
	acc, err := loadAccess(ctx, s.repos, userID, discussionID)
	if err != nil {
		return false, err
	}
	return acc.canAccess(userID), nil
}

// ListMembers returns the current members, oldest first
func (s *MembershipService) ListMembers(ctx context.Context, userID uuid.UUID, discussionID uint) ([]model.Membership, error) {
	acc, err := loadAccess(ctx, s.repos, userID, discussionID)
	if err != nil {
		return nil, err
	}
	if !acc.canAccess(userID) {
		return nil, ErrAccessDenied
	}
	statuses := model.CurrentStatuses
	if acc.canModerate(userID) {
		statuses = append([]model.MemberStatus{model.MemberStatusBanned}, model.CurrentStatuses...)
	}
	return s.repos.Memberships.ListByDiscussion(ctx, discussionID, statuses)
}

// InviteMembers adds users directly. Unknown users, current members and
// banned users are skipped; the ids actually added are returned.
func (s *MembershipService) InviteMembers(ctx context.Context, actorID uuid.UUID, discussionID uint, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	var (
		added []uuid.UUID
		msgs  []*model.Message
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		acc, err := loadAccess(ctx, tx, actorID, discussionID)
		if err != nil {
			return err
		}
		if !acc.canModerate(actorID) {
			return ErrNotModerator
		}
		if acc.discussion.IsArchived {
			return ErrDiscussionArchived
		}
		actor, err := tx.Users.FindByID(ctx, actorID)
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}
		added, msgs, err = addMembers(ctx, tx, acc.discussion, actor, userIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		s.publishMessage(ctx, discussionID, msg)
	}
	return added, nil
}

// addMembers admits each user inside its own savepoint so one refusal does
// not abort the rest, then records a single invite event.
func addMembers(ctx context.Context, tx *repository.Repositories, d *model.Discussion, actor *model.User, userIDs []uuid.UUID) ([]uuid.UUID, []*model.Message, error) {
	added := []uuid.UUID{}
	msgs := []*model.Message{}

	users, err := tx.Users.FindByIDs(ctx, withoutUser(dedupeIDs(userIDs), d.AdminID))
	if err != nil {
		return nil, nil, fmt.Errorf("load invitees: %w", err)
	}
	now := time.Now()
	for i := range users {
		user := &users[i]
		var msg *model.Message
		err := tx.Transaction(ctx, func(sp *repository.Repositories) error {
			var err error
			msg, err = admitUser(ctx, sp, d, user, model.MemberRoleMember, now)
			return err
		})
		if errors.Is(err, ErrAlreadyMember) || errors.Is(err, ErrBanned) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		added = append(added, user.ID)
		msgs = append(msgs, msg)
	}
	if len(added) == 0 {
		return added, msgs, nil
	}

	err = enqueueEvent(ctx, tx, model.NotificationInvited, model.EventPayload{
		DiscussionID:    d.ID,
		DiscussionTitle: d.Title,
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		RecipientIDs:    added,
		InviteCode:      d.InviteCode,
	})
	return added, msgs, err
}

// UpdateMember mutes, bans, restores or re-roles a member. Moderators may
// change the status of plain members; only the admin changes roles.
func (s *MembershipService) UpdateMember(ctx context.Context, actorID uuid.UUID, discussionID uint, targetID uuid.UUID, req model.UpdateMemberRequest) (*model.Membership, error) {
	if req.Status == "" && req.Role == "" {
		return nil, ErrInvalidMemberState
	}
	if req.Role == model.MemberRoleAdmin || req.Status == model.MemberStatusLeft {
		return nil, ErrInvalidMemberState
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		acc, err := loadAccess(ctx, tx, actorID, discussionID)
		if err != nil {
			return err
		}
		if !acc.canModerate(actorID) {
			return ErrNotModerator
		}
		d := acc.discussion
		if d.IsAdmin(targetID) {
			return ErrCannotModerateAdmin
		}

		target, err := tx.Memberships.FindByPair(ctx, discussionID, targetID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrMemberNotFound
			}
			return err
		}
		if target.Status == model.MemberStatusLeft {
			return ErrMemberNotFound
		}
		isAdmin := d.IsAdmin(actorID)
		if !isAdmin && (req.Role != "" || target.Role == model.MemberRoleModerator) {
			return ErrNotAdmin
		}

		if req.Role != "" && req.Role != target.Role {
			if err := tx.Memberships.UpdateRole(ctx, target.ID, req.Role); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
		}
		if req.Status != "" && req.Status != target.Status {
			if err := transitionMember(ctx, tx, target, req.Status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Memberships.FindByPair(ctx, discussionID, targetID)
}

// transitionMember changes the status and keeps member_count in step:
// banning removes a current member, lifting a ban restores one.
func transitionMember(ctx context.Context, tx *repository.Repositories, m *model.Membership, to model.MemberStatus) error {
	ok, err := tx.Memberships.TransitionStatus(ctx, m.ID, []model.MemberStatus{m.Status}, to)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return ErrMemberNotFound
	}

	wasCurrent := m.IsCurrent()
	isCurrent := to == model.MemberStatusActive || to == model.MemberStatusMuted
	switch {
	case wasCurrent && !isCurrent:
		return tx.Discussions.DecrementMemberCount(ctx, m.DiscussionID)
	case !wasCurrent && isCurrent:
		return tx.Discussions.IncrementMemberCount(ctx, m.DiscussionID)
	}
	return nil
}

// BroadcastTyping forwards a typing indicator to the other current members.
// Only members who may post can type.
func (s *MembershipService) BroadcastTyping(ctx context.Context, userID uuid.UUID, name string, discussionID uint, typing bool) error {
	acc, err := loadAccess(ctx, s.repos, userID, discussionID)
	if err != nil {
		return err
	}
	if !acc.isAdmin(userID) && (acc.membership == nil || !acc.membership.CanPost()) {
		return ErrNotMember
	}

	recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	eventType := model.WSEventTyping
	if !typing {
		eventType = model.WSEventStopTyping
	}
	s.publisher.PublishToUsers(withoutUser(recipients, userID), model.WSEvent{
		Type: eventType,
		Payload: model.TypingEvent{
			DiscussionID: discussionID,
			UserID:       userID,
			Name:         name,
		},
	})
	return nil
}

// AnnouncePresence tells the users who share a discussion with userID that
// they came online or went offline
func (s *MembershipService) AnnouncePresence(ctx context.Context, userID uuid.UUID, online bool) error {
	recipients, err := s.repos.Memberships.CoMemberIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("load co-members: %w", err)
	}
	eventType := model.WSEventOnline
	if !online {
		eventType = model.WSEventOffline
	}
	s.publisher.PublishToUsers(recipients, model.WSEvent{
		Type:    eventType,
		Payload: model.OnlineEvent{UserID: userID, IsOnline: online},
	})
	return nil
}

func (s *MembershipService) publishMembership(ctx context.Context, eventType string, discussionID uint, userID uuid.UUID, msg *model.Message, memberCount int64) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn("publish membership: load user", zap.Error(err))
		return
	}
	recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
	if err != nil {
		s.log.Warn("publish membership: load members", zap.Uint("discussion_id", discussionID), zap.Error(err))
		return
	}
	if eventType == model.WSEventMemberLeft {
		recipients = append(recipients, userID)
	}

	var msgID uint
	if msg != nil {
		msgID = msg.ID
	}
	s.publisher.PublishToUsers(recipients, model.WSEvent{
		Type: eventType,
		Payload: model.MembershipEvent{
			DiscussionID: discussionID,
			User:         user.ToSummary(),
			MessageID:    msgID,
			MemberCount:  memberCount,
		},
	})
}

func (s *MembershipService) publishMessage(ctx context.Context, discussionID uint, msg *model.Message) {
	recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
	if err != nil {
		s.log.Warn("publish message: load members", zap.Uint("discussion_id", discussionID), zap.Error(err))
		return
	}
	s.publisher.PublishToUsers(recipients, model.WSEvent{Type: model.WSEventMessageCreated, Payload: msg})
}

func enqueueEvent(ctx context.Context, tx *repository.Repositories, typ model.NotificationType, payload model.EventPayload) error {
	if len(payload.RecipientIDs) == 0 {
		return nil
	}
	if err := tx.Outbox.Enqueue(ctx, &model.OutboxEvent{Type: typ, Payload: payload}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", typ, err)
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func resultLabel(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "invalid"
	}
	return "error"
}
