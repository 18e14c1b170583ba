package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a slot is expected on disk but absent.
var ErrNotFound = errors.New("cache slot not found")

// Slot describes one cached asset file.
type Slot struct {
	Fingerprint string
	Size        int64
	LastAccess  time.Time
}

// AccessIndex is an explicit last-access clock. When a repository has one,
// its instants take precedence over file modification times.
type AccessIndex interface {
	Touch(ctx context.Context, fingerprint string, at time.Time) error
	LastAccess(ctx context.Context) (map[string]time.Time, error)
	Forget(ctx context.Context, fingerprint string) error
}
