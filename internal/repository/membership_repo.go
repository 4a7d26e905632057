package repository

import (
	"context"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository handles database operations for Membership.
// Status transitions are conditional updates; callers check the returned
// bool to learn whether they won the transition.
type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a new membership row. A second row for the same pair
// returns ErrDuplicateMembership.
func (r *MembershipRepository) Create(ctx context.Context, m *model.Membership) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
	if IsDuplicate(err) {
		return ErrDuplicateMembership
	}
	return err
}

// FindByPair returns the membership row of user in discussion, in any status
func (r *MembershipRepository) FindByPair(ctx context.Context, discussionID uint, userID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("discussion_id = ? AND user_id = ?", discussionID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Reactivate turns a left membership back into an active one
func (r *MembershipRepository) Reactivate(ctx context.Context, id uint, role model.MemberRole, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status = ?", id, model.MemberStatusLeft).
		Updates(map[string]interface{}{
			"status":    model.MemberStatusActive,
			"role":      role,
			"joined_at": at,
			"left_at":   nil,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkLeft moves a current membership to left
func (r *MembershipRepository) MarkLeft(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status IN ?", id, model.CurrentStatuses).
		Updates(map[string]interface{}{
			"status":  model.MemberStatusLeft,
			"left_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// TransitionStatus moves the membership to status `to` only if it is
// currently in one of `from`
func (r *MembershipRepository) TransitionStatus(ctx context.Context, id uint, from []model.MemberStatus, to model.MemberStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

// UpdateRole changes a member's role
func (r *MembershipRepository) UpdateRole(ctx context.Context, id uint, role model.MemberRole) error {
	return r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// IncrementMessageCount counts one message sent by the member
func (r *MembershipRepository) IncrementMessageCount(ctx context.Context, discussionID uint, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("discussion_id = ? AND user_id = ?", discussionID, userID).
		UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error
}

// LeaveAll moves every membership of the discussion that has not already
// left, banned ones included, to left
func (r *MembershipRepository) LeaveAll(ctx context.Context, discussionID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("discussion_id = ? AND status <> ?", discussionID, model.MemberStatusLeft).
		Updates(map[string]interface{}{
			"status":  model.MemberStatusLeft,
			"left_at": at,
		})
	return res.RowsAffected, res.Error
}

// ListByDiscussion returns members in the given statuses, oldest first
func (r *MembershipRepository) ListByDiscussion(ctx context.Context, discussionID uint, statuses []model.MemberStatus) ([]model.Membership, error) {
	members := []model.Membership{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("discussion_id = ? AND status IN ?", discussionID, statuses).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&members).Error
	return members, err
}

// RecentJoins returns current members who joined at or after since
func (r *MembershipRepository) RecentJoins(ctx context.Context, discussionID uint, since time.Time) ([]model.Membership, error) {
	members := []model.Membership{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("discussion_id = ? AND status IN ? AND joined_at >= ?", discussionID, model.CurrentStatuses, since).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

// CurrentMemberIDs returns the user ids of every current member
func (r *MembershipRepository) CurrentMemberIDs(ctx context.Context, discussionID uint) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("discussion_id = ? AND status IN ?", discussionID, model.CurrentStatuses).
		Pluck("user_id", &ids).Error
	return ids, err
}

// CoMemberIDs returns every user who is a current member of at least one
// discussion userID is currently in, userID excluded
func (r *MembershipRepository) CoMemberIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	mine := r.db.Model(&model.Membership{}).
		Select("discussion_id").
		Where("user_id = ? AND status IN ?", userID, model.CurrentStatuses)
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("discussion_id IN (?) AND status IN ? AND user_id <> ?", mine, model.CurrentStatuses, userID).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}
