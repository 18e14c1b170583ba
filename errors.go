package assetcache

import (
	"errors"
	"fmt"

	"github.com/lucasew/assetcache/internal/eviction"
	"github.com/lucasew/assetcache/internal/remote"
	"github.com/lucasew/assetcache/internal/repository"
)

var (
	// ErrNotFound is returned when a local slot is read directly but absent.
	ErrNotFound = repository.ErrNotFound

	// ErrAccessDenied is returned when the remote store rejects the credentials
	// for a whole request.
	ErrAccessDenied = errors.New("access denied")

	// ErrRemoteUnavailable is returned when a whole request fails: transport
	// error, timeout, non-success status or unreadable body.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrOverCapacity marks a payload larger than the whole cache budget. It is
	// never returned by Load; see Asset.OverCapacity.
	ErrOverCapacity = eviction.ErrOverCapacity

	errNoOutcome = errors.New("asset missing from response")
)

// HTTPStatusError is returned (wrapped) when the remote store responds with a non-200 status code.
type HTTPStatusError = remote.HTTPStatusError

// AssetError is the failure of a single key inside a batch. It does not fail
// the batch.
type AssetError struct {
	Key    string
	Status int
	Err    error
}

func (e *AssetError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("asset %q (status %d): %v", e.Key, e.Status, e.Err)
	}
	return fmt.Sprintf("asset %q: %v", e.Key, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// classify maps a whole-request failure onto ErrAccessDenied or ErrRemoteUnavailable.
func classify(err error) error {
	var statusErr *remote.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.Denied() {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
}
