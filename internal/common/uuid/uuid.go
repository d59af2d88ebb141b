// Package uuid issues the time-ordered request identifiers sent as X-Request-Id.
// It wraps github.com/google/uuid with version 7 as the default.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// UUID7 generates a new UUIDv7, falling back to a random v4 if the clock based
// generator fails.
func UUID7() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return UUID7().String()
}

// Parse parses a UUID string into a UUID value.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether the given UUID is a valid UUIDv7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// IssuedAt returns the creation time embedded in a UUIDv7 request id. The top 48
// bits hold milliseconds since the Unix epoch.
func IssuedAt(id string) (time.Time, bool) {
	u, err := uuid.Parse(id)
	if err != nil || !IsUUIDv7(u) {
		return time.Time{}, false
	}
	tsMillis := binary.BigEndian.Uint64(u[0:8]) >> 16
	return time.UnixMilli(int64(tsMillis)), true
}
