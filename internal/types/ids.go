package types

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewBindID generates a UUIDv7 bind identifier.
// Time-ordered IDs keep catalog rows clustered by creation.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewBindID() BindID {
	return BindID(uuid.Must(uuid.NewV7()).String())
}

// NewDenyListID generates a UUIDv7 deny-list entry identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewDenyListID() DenyListID {
	return DenyListID(uuid.Must(uuid.NewV7()).String())
}

// ParseBindID validates and converts a string to BindID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the catalog.
func ParseBindID(s string) (BindID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return BindID(s), nil
}

// ParseDenyListID validates and converts a string to DenyListID.
func ParseDenyListID(s string) (DenyListID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return DenyListID(s), nil
}

// BindIDTime extracts the creation timestamp embedded in a UUIDv7 bind ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func BindIDTime(id BindID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// ParseSnowflake parses a decimal platform identifier.
// Zero is rejected: no platform hands out id 0.
func ParseSnowflake(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid identifier %q: must be non-zero", s)
	}
	return n, nil
}
