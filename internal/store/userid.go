// Package store provides filesystem layout, identifier validation and
// embedded schema migrations for the affinity database.
package store

import (
	"errors"
	"strings"
)

// ErrInvalidUserID indicates the user ID format is invalid.
var ErrInvalidUserID = errors.New("invalid user ID: 1-64 characters of letters, digits, or _-:@.")

// MaxUserIDLength caps user ID length across all platforms.
const MaxUserIDLength = 64

// ValidateUserID validates a platform user ID.
//
// IDs vary widely across chat platforms (numeric QQ IDs, Telegram usernames,
// colon-qualified enterprise IDs), so the rule is deliberately loose: trimmed,
// non-empty, at most 64 characters, drawn from letters, digits and "_-:@.".
func ValidateUserID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxUserIDLength {
		return ErrInvalidUserID
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == ':' || c == '@' || c == '.':
		default:
			return ErrInvalidUserID
		}
	}
	return nil
}
