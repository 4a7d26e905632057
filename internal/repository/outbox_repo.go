package repository

import (
	"context"
	"time"

	"github.com/academvault/discussions/internal/model"
	"gorm.io/gorm"
)

// OutboxRepository stores notification events until the dispatcher
// delivers them
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue records an event as pending and immediately available
func (r *OutboxRepository) Enqueue(ctx context.Context, ev *model.OutboxEvent) error {
	ev.Status = model.OutboxStatusPending
	if ev.AvailableAt.IsZero() {
		ev.AvailableAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(ev).Error
}

// FetchDue returns pending events whose available_at has passed, oldest first
func (r *OutboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	events := []model.OutboxEvent{}
	err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", model.OutboxStatusPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Claim leases ev until leaseUntil and counts the attempt. It fails (false)
// when another dispatcher has claimed the event since it was fetched.
func (r *OutboxRepository) Claim(ctx context.Context, ev *model.OutboxEvent, leaseUntil time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND status = ? AND attempts = ?", ev.ID, model.OutboxStatusPending, ev.Attempts).
		Updates(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"available_at": leaseUntil,
		})
	if res.Error != nil || res.RowsAffected == 0 {
		return false, res.Error
	}
	ev.Attempts++
	ev.AvailableAt = leaseUntil
	return true, nil
}

// MarkDone records successful delivery
func (r *OutboxRepository) MarkDone(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxStatusDone,
			"processed_at": at,
			"last_error":   "",
		}).Error
}

// MarkRetry keeps the event pending and schedules the next attempt
func (r *OutboxRepository) MarkRetry(ctx context.Context, id uint, lastErr string, next time.Time) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error":   lastErr,
			"available_at": next,
		}).Error
}

// MarkFailed gives up on the event
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, lastErr string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxStatusFailed,
			"last_error":   lastErr,
			"processed_at": at,
		}).Error
}

// PurgeProcessed deletes done events older than before
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", model.OutboxStatusDone, before).
		Delete(&model.OutboxEvent{})
	return res.RowsAffected, res.Error
}
