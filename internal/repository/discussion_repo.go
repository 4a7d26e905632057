package repository

import (
	"context"
	"strings"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DiscussionRepository handles database operations for Discussion.
//
// Every statement that appends to a discussion's message log first updates
// the discussion row (a counter increment). The row lock taken by that update
// serialises writers per discussion so message ids commit in id order.
type DiscussionRepository struct {
	db *gorm.DB
}

func NewDiscussionRepository(db *gorm.DB) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

// Create inserts a discussion without touching its associations
func (r *DiscussionRepository) Create(ctx context.Context, d *model.Discussion) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error
}

// FindByID finds a live (not soft-deleted) discussion with its admin
func (r *DiscussionRepository) FindByID(ctx context.Context, id uint) (*model.Discussion, error) {
	var d model.Discussion
	err := r.db.WithContext(ctx).
		Preload("Admin").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindByInviteCode finds a live discussion by its normalized invite code
func (r *DiscussionRepository) FindByInviteCode(ctx context.Context, code string) (*model.Discussion, error) {
	var d model.Discussion
	err := r.db.WithContext(ctx).
		Where("invite_code = ?", code).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InviteCodeTaken reports whether any discussion other than excludeID holds
// code. Soft-deleted rows still own their code.
func (r *DiscussionRepository) InviteCodeTaken(ctx context.Context, code string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&model.Discussion{}).
		Where("invite_code = ? AND id <> ?", code, excludeID).
		Count(&count).Error
	return count > 0, err
}

// SetInviteCode replaces the invite code. A concurrent holder surfaces as a
// duplicate-key error.
func (r *DiscussionRepository) SetInviteCode(ctx context.Context, id uint, code string) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		Update("invite_code", code).Error
}

// Update writes the named columns from patch, zero values included
func (r *DiscussionRepository) Update(ctx context.Context, id uint, fields []string, patch *model.Discussion) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		Select(fields).
		Updates(patch).Error
}

// SetArchived flips the archive flag
func (r *DiscussionRepository) SetArchived(ctx context.Context, id uint, archived bool) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		Update("is_archived", archived).Error
}

// IncrementMemberCount adds one current member
func (r *DiscussionRepository) IncrementMemberCount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error
}

// DecrementMemberCount removes one current member, never going below zero.
// The statement always matches the row so it takes the row lock even when
// the counter is already zero.
func (r *DiscussionRepository) DecrementMemberCount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("member_count", gorm.Expr("CASE WHEN member_count > 0 THEN member_count - 1 ELSE 0 END")).Error
}

// ResetMemberCount zeroes the member counter
func (r *DiscussionRepository) ResetMemberCount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		UpdateColumn("member_count", 0).Error
}

// RecordMessage counts one member message and stamps its time
func (r *DiscussionRepository) RecordMessage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Discussion{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": at,
		}).Error
}

// SoftDelete marks the discussion deleted
func (r *DiscussionRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Discussion{}, id).Error
}

// ListForUser returns the discussions the user currently belongs to, most
// recently active first
func (r *DiscussionRepository) ListForUser(ctx context.Context, userID uuid.UUID, archived bool, limit, offset int) ([]model.Discussion, error) {
	discussions := []model.Discussion{}
	err := r.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.discussion_id = discussions.id").
		Where("memberships.user_id = ? AND memberships.status IN ?", userID, model.CurrentStatuses).
		Where("discussions.is_archived = ?", archived).
		Preload("Admin").
		Order("discussions.is_pinned DESC").
		Order("COALESCE(discussions.last_message_at, discussions.created_at) DESC").
		Order("discussions.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&discussions).Error
	return discussions, err
}

// ListPublic returns live, unarchived public discussions matching an optional
// title query and tag
func (r *DiscussionRepository) ListPublic(ctx context.Context, query, tag string, limit, offset int) ([]model.Discussion, error) {
	discussions := []model.Discussion{}
	q := r.db.WithContext(ctx).
		Where("privacy = ? AND is_archived = ?", model.PrivacyPublic, false)
	if query != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if tag != "" {
		// tags are stored as a JSON array of strings
		q = q.Where("tags LIKE ?", `%"`+tag+`"%`)
	}
	err := q.Preload("Admin").
		Order("member_count DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&discussions).Error
	return discussions, err
}

// Stats reads the counters polling clients reconcile against
func (r *DiscussionRepository) Stats(ctx context.Context, id uint) (model.DiscussionStats, error) {
	var stats model.DiscussionStats
	err := r.db.WithContext(ctx).Model(&model.Discussion{}).
		Select("member_count, message_count, last_message_at").
		Where("id = ?", id).
		Take(&stats).Error
	return stats, err
}
