// Package invitecode generates and normalizes discussion invite codes.
//
// Codes are upper-case alphanumeric. Lookups are case-insensitive because
// every code is upper-cased both when it is stored and when it is looked up.
package invitecode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// Length of generated codes
	Length = 8

	MinLength = 6
	MaxLength = 16

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalid = errors.New("invite code must be 6-16 letters or digits")

// Generate returns a random code of Length characters using crypto/rand
func Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Normalize trims surrounding whitespace and upper-cases the code
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a normalized code
func Validate(code string) error {
	if len(code) < MinLength || len(code) > MaxLength {
		return ErrInvalid
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return ErrInvalid
		}
	}
	return nil
}
