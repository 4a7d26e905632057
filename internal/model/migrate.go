package model

import "gorm.io/gorm"

// AutoMigrate creates or updates every table through GORM. The server uses
// the SQL migrations in /migrations and falls back to this when they fail;
// tests use it directly.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&UserDevice{},
		&Discussion{},
		&Membership{},
		&Message{},
		&Notification{},
		&OutboxEvent{},
	)
}
