package repository

import (
	"context"

	"github.com/academvault/discussions/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message; the database assigns its id
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
}

// FindByID finds a live message with its author and reply target
func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("ReplyTo").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindInDiscussion finds a live message only if it belongs to discussionID
func (r *MessageRepository) FindInDiscussion(ctx context.Context, discussionID, id uint) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Where("id = ? AND discussion_id = ?", id, discussionID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListSince returns up to limit live messages with id > since, ascending.
// This is the polling query; (discussion_id, id) is indexed for it.
func (r *MessageRepository) ListSince(ctx context.Context, discussionID, since uint, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("discussion_id = ? AND id > ?", discussionID, since).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// ListBefore returns up to limit live messages older than before (all when
// before is zero), newest first
func (r *MessageRepository) ListBefore(ctx context.Context, discussionID, before uint, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	q := r.db.WithContext(ctx).
		Preload("Author").
		Preload("ReplyTo").
		Where("discussion_id = ?", discussionID)
	if before > 0 {
		q = q.Where("id < ?", before)
	}
	err := q.Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

// SoftDelete hides one message from every read path
func (r *MessageRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Message{}, id).Error
}

// SoftDeleteByDiscussion hides every message of a discussion
func (r *MessageRepository) SoftDeleteByDiscussion(ctx context.Context, discussionID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Delete(&model.Message{})
	return res.RowsAffected, res.Error
}
