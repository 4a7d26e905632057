package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over one handle, either the root
// connection or a transaction.
type Repositories struct {
	db *gorm.DB

	Users         *UserRepository
	Discussions   *DiscussionRepository
	Memberships   *MembershipRepository
	Messages      *MessageRepository
	Notifications *NotificationRepository
	Outbox        *OutboxRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Users:         NewUserRepository(db),
		Discussions:   NewDiscussionRepository(db),
		Memberships:   NewMembershipRepository(db),
		Messages:      NewMessageRepository(db),
		Notifications: NewNotificationRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. It
// commits when fn returns nil and rolls back otherwise. Inside fn only the
// repositories passed in may be used.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
