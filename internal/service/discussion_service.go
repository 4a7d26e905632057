package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/pkg/htmlsanitize"
	"github.com/academvault/discussions/pkg/invitecode"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds random invite-code generation
const maxCodeAttempts = 5

// DiscussionService handles the discussion lifecycle
type DiscussionService struct {
	repos     *repository.Repositories
	publisher EventPublisher
	log       *zap.Logger
}

func NewDiscussionService(repos *repository.Repositories, publisher EventPublisher, log *zap.Logger) *DiscussionService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &DiscussionService{repos: repos, publisher: publisher, log: log}
}

// Create creates a discussion owned by adminID. The admin becomes its first
// member and initial members are admitted in the same transaction.
func (s *DiscussionService) Create(ctx context.Context, adminID uuid.UUID, req model.CreateDiscussionRequest) (*model.Discussion, error) {
	ctx, span := tracer.Start(ctx, "DiscussionService.Create")
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if req.Privacy == "" {
		req.Privacy = model.PrivacyPublic
	}
	if !model.ValidPrivacy(req.Privacy) {
		return nil, ErrInvalidPrivacy
	}
	if req.Type == "" {
		req.Type = model.DiscussionTypeGeneral
	}
	if !model.ValidDiscussionType(req.Type) {
		return nil, ErrInvalidType
	}

	var (
		discussionID uint
		msgs         []*model.Message
	)
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		admin, err := tx.Users.FindByID(ctx, adminID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		code, err := freeInviteCode(ctx, tx, 0)
		if err != nil {
			return err
		}

		d := &model.Discussion{
			Title:       title,
			Description: htmlsanitize.Clean(req.Description),
			Type:        req.Type,
			Privacy:     req.Privacy,
			InviteCode:  code,
			AdminID:     admin.ID,
			MemberCount: 1,
			Tags:        normalizeTags(req.Tags),
		}
		if err := tx.Discussions.Create(ctx, d); err != nil {
			if repository.IsDuplicate(err) {
				return fmt.Errorf("%w: %v", ErrInviteCodeExhausted, err)
			}
			return fmt.Errorf("create discussion: %w", err)
		}
		discussionID = d.ID

		err = tx.Memberships.Create(ctx, &model.Membership{
			DiscussionID: d.ID,
			UserID:       admin.ID,
			Role:         model.MemberRoleAdmin,
			Status:       model.MemberStatusActive,
			JoinedAt:     time.Now(),
		})
		if err != nil {
			return fmt.Errorf("create admin membership: %w", err)
		}

		if len(req.InitialMembers) > 0 {
			_, msgs, err = addMembers(ctx, tx, d, admin, req.InitialMembers)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(msgs) > 0 {
		recipients, err := s.repos.Memberships.CurrentMemberIDs(ctx, discussionID)
		if err == nil {
			for _, msg := range msgs {
				s.publisher.PublishToUsers(recipients, model.WSEvent{Type: model.WSEventMessageCreated, Payload: msg})
			}
		}
	}

	s.log.Info("discussion created",
		zap.Uint("discussion_id", discussionID),
		zap.String("admin_id", adminID.String()),
		zap.Int("initial_members", len(msgs)),
	)
	return s.repos.Discussions.FindByID(ctx, discussionID)
}

// freeInviteCode draws random codes until one is unused by any discussion
// other than excludeID
func freeInviteCode(ctx context.Context, repos *repository.Repositories, excludeID uint) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := invitecode.Generate()
		if err != nil {
			return "", err
		}
		taken, err := repos.Discussions.InviteCodeTaken(ctx, code, excludeID)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrInviteCodeExhausted
}

// Get returns a discussion as seen by userID. The invite code is only shown
// to current members.
func (s *DiscussionService) Get(ctx context.Context, userID uuid.UUID, id uint) (*model.DiscussionView, error) {
	acc, err := loadAccess(ctx, s.repos, userID, id)
	if err != nil {
		return nil, err
	}
	if !acc.canAccess(userID) {
		return nil, ErrAccessDenied
	}

	view := &model.DiscussionView{Discussion: *acc.discussion}
	if acc.membership != nil {
		view.MyRole = acc.membership.Role
		view.MyStatus = acc.membership.Status
	}
	if !acc.isCurrentMember() && !acc.isAdmin(userID) {
		view.InviteCode = ""
	}
	return view, nil
}

// ListMine returns the discussions the user currently belongs to
func (s *DiscussionService) ListMine(ctx context.Context, userID uuid.UUID, req model.DiscussionListRequest) ([]model.Discussion, error) {
	limit, offset := pageBounds(req.Limit, req.Offset)
	return s.repos.Discussions.ListForUser(ctx, userID, req.Archived, limit, offset)
}

// ListPublic returns joinable public discussions without their invite codes
func (s *DiscussionService) ListPublic(ctx context.Context, req model.DiscussionListRequest) ([]model.Discussion, error) {
	limit, offset := pageBounds(req.Limit, req.Offset)
	discussions, err := s.repos.Discussions.ListPublic(ctx, strings.TrimSpace(req.Query), strings.TrimSpace(req.Tag), limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range discussions {
		discussions[i].InviteCode = ""
	}
	return discussions, nil
}

// Update patches metadata and, when requested, the invite code in one
// transaction, so a failure leaves the discussion untouched.
func (s *DiscussionService) Update(ctx context.Context, actorID uuid.UUID, id uint, req model.UpdateDiscussionRequest) (*model.Discussion, error) {
	d, err := s.adminDiscussion(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	var (
		fields []string
		patch  model.Discussion
	)
	if req.Title != nil {
		patch.Title = strings.TrimSpace(*req.Title)
		if patch.Title == "" {
			return nil, ErrTitleRequired
		}
		fields = append(fields, "title")
	}
	if req.Description != nil {
		patch.Description = htmlsanitize.Clean(*req.Description)
		fields = append(fields, "description")
	}
	if req.IsPinned != nil {
		patch.IsPinned = *req.IsPinned
		fields = append(fields, "is_pinned")
	}
	if req.Tags != nil {
		patch.Tags = normalizeTags(*req.Tags)
		fields = append(fields, "tags")
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if req.InviteCode != "" || req.RegenerateInviteCode {
			if _, err := assignInviteCode(ctx, tx, d, req.InviteCode); err != nil {
				return err
			}
		}
		if err := tx.Discussions.Update(ctx, d.ID, fields, &patch); err != nil {
			return fmt.Errorf("update discussion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Discussions.FindByID(ctx, d.ID)
}

// Archive hides the discussion from default listings and closes it to joins
// and new messages
func (s *DiscussionService) Archive(ctx context.Context, actorID uuid.UUID, id uint) error {
	return s.setArchived(ctx, actorID, id, true)
}

// Unarchive reverses Archive
func (s *DiscussionService) Unarchive(ctx context.Context, actorID uuid.UUID, id uint) error {
	return s.setArchived(ctx, actorID, id, false)
}

func (s *DiscussionService) setArchived(ctx context.Context, actorID uuid.UUID, id uint, archived bool) error {
	d, err := s.adminDiscussion(ctx, actorID, id)
	if err != nil {
		return err
	}
	if d.IsArchived == archived {
		return nil
	}
	return s.repos.Discussions.SetArchived(ctx, d.ID, archived)
}

// Delete soft-deletes the discussion and its messages and moves every current
// member to left. There is no undelete.
func (s *DiscussionService) Delete(ctx context.Context, actorID uuid.UUID, id uint) error {
	ctx, span := tracer.Start(ctx, "DiscussionService.Delete")
	defer span.End()

	var recipients []uuid.UUID
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		d, err := tx.Discussions.FindByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrDiscussionNotFound
			}
			return err
		}
		if !d.IsAdmin(actorID) {
			return ErrNotAdmin
		}

		recipients, err = tx.Memberships.CurrentMemberIDs(ctx, d.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		if _, err := tx.Messages.SoftDeleteByDiscussion(ctx, d.ID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.Memberships.LeaveAll(ctx, d.ID, now); err != nil {
			return fmt.Errorf("close memberships: %w", err)
		}
		if err := tx.Discussions.ResetMemberCount(ctx, d.ID); err != nil {
			return err
		}
		if err := tx.Discussions.SoftDelete(ctx, d.ID); err != nil {
			return fmt.Errorf("delete discussion: %w", err)
		}

		actor := d.Admin
		return enqueueEvent(ctx, tx, model.NotificationDiscussionDeleted, model.EventPayload{
			DiscussionID:    d.ID,
			DiscussionTitle: d.Title,
			ActorID:         actor.ID,
			ActorName:       actor.Name,
			RecipientIDs:    withoutUser(recipients, actorID),
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.publisher.PublishToUsers(recipients, model.WSEvent{
		Type:    model.WSEventDiscussionDeleted,
		Payload: model.DiscussionDeletedEvent{DiscussionID: id},
	})
	s.log.Info("discussion deleted", zap.Uint("discussion_id", id), zap.Int("members", len(recipients)))
	return nil
}

// RegenerateInviteCode sets a caller-supplied code, or a random one when
// requested is empty, and returns the new code. A code held by any other
// discussion, deleted ones included, is a conflict and nothing changes.
func (s *DiscussionService) RegenerateInviteCode(ctx context.Context, actorID uuid.UUID, id uint, requested string) (string, error) {
	d, err := s.adminDiscussion(ctx, actorID, id)
	if err != nil {
		return "", err
	}
	if requested != "" {
		return assignInviteCode(ctx, s.repos, d, requested)
	}

	// a random code can lose a race for the unique index; draw again
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := assignInviteCode(ctx, s.repos, d, "")
		if !errors.Is(err, ErrInviteCodeTaken) {
			return code, err
		}
	}
	return "", ErrInviteCodeExhausted
}

// assignInviteCode stores requested, or a fresh random code when it is
// empty, on d using repos
func assignInviteCode(ctx context.Context, repos *repository.Repositories, d *model.Discussion, requested string) (string, error) {
	var code string
	if requested != "" {
		code = invitecode.Normalize(requested)
		if invitecode.Validate(code) != nil {
			return "", ErrInvalidInviteCode
		}
		if code == d.InviteCode {
			return code, nil
		}
		taken, err := repos.Discussions.InviteCodeTaken(ctx, code, d.ID)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if taken {
			return "", ErrInviteCodeTaken
		}
	} else {
		var err error
		if code, err = freeInviteCode(ctx, repos, d.ID); err != nil {
			return "", err
		}
	}

	if err := repos.Discussions.SetInviteCode(ctx, d.ID, code); err != nil {
		if repository.IsDuplicate(err) {
			return "", ErrInviteCodeTaken
		}
		return "", fmt.Errorf("set invite code: %w", err)
	}
	return code, nil
}

func (s *DiscussionService) adminDiscussion(ctx context.Context, actorID uuid.UUID, id uint) (*model.Discussion, error) {
	d, err := s.repos.Discussions.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDiscussionNotFound
		}
		return nil, err
	}
	if !d.IsAdmin(actorID) {
		return nil, ErrNotAdmin
	}
	return d, nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping order
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
