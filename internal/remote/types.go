package remote

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 200 response body cannot be understood.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPStatusError is returned when the remote store responds with a non-200 status code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Denied reports whether the status means the credentials were rejected.
func (e *HTTPStatusError) Denied() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// RevalidateRequest asks for a batch of keys. ETags carries the fingerprint of
// every key that already has a local slot; keys absent from it are always
// sent back fresh.
type RevalidateRequest struct {
	Keys  []string          `json:"keys"`
	ETags map[string]string `json:"etags"`
}

// Asset is the per-key outcome of a revalidation.
type Asset struct {
	Key     string `json:"key"`
	Status  int    `json:"status"`
	Content string `json:"content,omitempty"`
	ETag    string `json:"etag,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NotModified reports whether the local copy is still current.
func (a Asset) NotModified() bool {
	return a.Status == http.StatusNotModified
}

// Fresh reports whether the asset carries new content.
func (a Asset) Fresh() bool {
	return a.Status == http.StatusOK
}

// Payload decodes the base64 content of a fresh asset.
func (a Asset) Payload() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(a.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", a.Key, err)
	}
	return b, nil
}

// RevalidateResponse lists one Asset per requested key, in any order.
type RevalidateResponse struct {
	Assets []Asset `json:"assets"`
}

func (r *RevalidateResponse) validate() error {
	for i, a := range r.Assets {
		if a.Key == "" {
			return fmt.Errorf("%w: asset %d has no key", ErrMalformedResponse, i)
		}
		if a.Status == 0 {
			return fmt.Errorf("%w: asset %q has no status", ErrMalformedResponse, a.Key)
		}
	}
	return nil
}
