package service

import (
	"context"
	"time"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/google/uuid"
)

// NotificationService serves a user's in-app notifications and push devices
type NotificationService struct {
	repos *repository.Repositories
}

func NewNotificationService(repos *repository.Repositories) *NotificationService {
	return &NotificationService{repos: repos}
}

// List returns the user's notifications newest first and the unread count
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, req model.NotificationListRequest) ([]model.Notification, int64, error) {
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.repos.Notifications.ListForUser(ctx, userID, req.UnreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repos.Notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead marks one of the user's notifications read
func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, id uint) error {
	ok, err := s.repos.Notifications.MarkRead(ctx, id, userID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repos.Notifications.MarkAllRead(ctx, userID, time.Now())
}

// RegisterDevice stores a push token for the user
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req model.RegisterDeviceRequest) error {
	return s.repos.Users.AddDevice(ctx, userID, req.FCMToken, req.DeviceType)
}
