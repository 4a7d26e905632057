package repository

import (
	"context"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles database operations for User
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by UUID
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads every existing user among ids; unknown ids are skipped
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// UpdateOnlineStatus sets a user's online status and last seen time
func (r *UserRepository) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, isOnline bool) error {
	updates := map[string]interface{}{
		"is_online": isOnline,
	}
	if !isOnline {
		updates["last_seen"] = time.Now()
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}

// AddDevice adds or refreshes a push token
func (r *UserRepository) AddDevice(ctx context.Context, userID uuid.UUID, token string, deviceType string) error {
	now := time.Now()
	device := model.UserDevice{
		UserID:       userID,
		FCMToken:     token,
		DeviceType:   deviceType,
		LastActiveAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_active_at": now,
			"device_type":    deviceType,
		}),
	}).Create(&device).Error
}

// GetDeviceTokens returns the push tokens of every listed user
func (r *UserRepository) GetDeviceTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	tokens := []string{}
	if len(userIDs) == 0 {
		return tokens, nil
	}
	err := r.db.WithContext(ctx).Model(&model.UserDevice{}).
		Where("user_id IN ?", userIDs).
		Pluck("fcm_token", &tokens).Error
	return tokens, err
}

// RemoveDeviceTokens drops tokens the push provider reported as unregistered
func (r *UserRepository) RemoveDeviceTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("fcm_token IN ?", tokens).Delete(&model.UserDevice{}).Error
}
