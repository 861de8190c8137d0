// Package ids provides client-generated identifier primitives (ULID).
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps attempt ids orderable in logs.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewAttemptID returns a ULID used as the temporary id of an optimistic message.
// The same id is threaded through the send path so a failed upload marks
// exactly the message that initiated it.
func NewAttemptID(now time.Time) (string, error) {
	return NewULID(now)
}
