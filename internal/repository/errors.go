package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrDuplicateMembership = errors.New("user already has a membership row for this discussion")

// IsNotFound reports whether err means the row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation.
// Connections are opened with gorm.Config{TranslateError: true}; the message
// check covers drivers that do not translate.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
