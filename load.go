package assetcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/lucasew/assetcache/internal/metrics"
	"github.com/lucasew/assetcache/internal/remote"
)

// Status is the terminal state of one key in a load.
type Status int

const (
	StatusError Status = iota
	StatusHit
	StatusMiss
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	default:
		return "error"
	}
}

// Asset is the outcome of one requested key.
type Asset struct {
	Key         string
	Fingerprint string
	// Path is the local slot, empty when Err is set.
	Path   string
	Status Status
	// OverCapacity is set when the payload alone exceeded the cache budget; the
	// cache was drained and the slot written anyway.
	OverCapacity bool
	Err          error
}

// Result holds one Asset per requested key, in request order.
type Result struct {
	Assets []Asset
}

// Paths returns the local paths of the keys that resolved, in request order.
func (r *Result) Paths() []string {
	paths := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		if a.Err == nil {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// Errors returns the per-key failures, in request order.
func (r *Result) Errors() []*AssetError {
	var errs []*AssetError
	for _, a := range r.Assets {
		var assetErr *AssetError
		if errors.As(a.Err, &assetErr) {
			errs = append(errs, assetErr)
		}
	}
	return errs
}

// Load resolves a single key. It is LoadMany with one key: a per-key failure
// comes back as an *AssetError.
func (c *Client) Load(ctx context.Context, key string) (string, error) {
	res, err := c.LoadMany(ctx, []string{key})
	if err != nil {
		return "", err
	}
	a := res.Assets[0]
	if a.Err != nil {
		return "", a.Err
	}
	return a.Path, nil
}

// LoadMany revalidates keys against the remote store in a single request and
// returns a local path for each one that resolved.
//
// Keys with a local slot are sent with their fingerprint; the store answers
// 304 for those that are still current (the slot is touched) and 200 with
// content for everything else (room is made, then the slot is written). Any
// other per-key status becomes an *AssetError on that Asset only.
//
// Confirmed slots are touched before any payload is written, so eviction for
// a fresh key never removes a slot the same batch just revalidated. A slot
// that disappears between the request and the reply (another call evicted
// it) is fetched again with one unconditional follow-up request.
//
// A failure of the request itself returns ErrAccessDenied or
// ErrRemoteUnavailable and leaves the cache directory untouched.
func (c *Client) LoadMany(ctx context.Context, keys []string) (*Result, error) {
	if len(keys) == 0 {
		return &Result{}, nil
	}

	fingerprints := make(map[string]string, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, seen := fingerprints[key]; seen {
			continue
		}
		fingerprints[key] = c.deriver.Fingerprint(key)
		unique = append(unique, key)
	}

	outcomes, known, err := c.revalidate(ctx, unique, fingerprints, true)
	if err != nil {
		return nil, err
	}
	resolved, stale := c.apply(ctx, unique, fingerprints, outcomes, known)

	if len(stale) > 0 {
		slog.Info("Refetching slots evicted during revalidation", "keys", len(stale))
		outcomes, _, err := c.revalidate(ctx, stale, fingerprints, false)
		if err != nil {
			for _, key := range stale {
				resolved[key] = c.finish(Asset{Key: key, Fingerprint: fingerprints[key], Err: &AssetError{Key: key, Err: err}})
			}
		} else {
			retried, _ := c.apply(ctx, stale, fingerprints, outcomes, nil)
			maps.Copy(resolved, retried)
		}
	}

	res := &Result{Assets: make([]Asset, len(keys))}
	for i, key := range keys {
		res.Assets[i] = resolved[key]
	}
	return res, nil
}

// revalidate sends one batch for keys. When conditional is set, keys with a
// local slot carry their fingerprint; the returned map lists those keys.
func (c *Client) revalidate(ctx context.Context, keys []string, fingerprints map[string]string, conditional bool) (map[string]remote.Asset, map[string]string, error) {
	known := make(map[string]string)
	if conditional {
		for _, key := range keys {
			fp := fingerprints[key]
			ok, err := c.store.Exists(ctx, fp)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to check slot for %q: %w", key, err)
			}
			if ok {
				known[key] = fp
			}
		}
	}

	start := time.Now()
	resp, err := c.remote.Revalidate(ctx, remote.RevalidateRequest{Keys: keys, ETags: known})
	metrics.RevalidateTime.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RevalidateFailures.Inc()
		err = classify(err)
		errutil.ReportError(err, "Revalidation failed", "keys", len(keys))
		return nil, nil, err
	}

	requested := make(map[string]bool, len(keys))
	for _, key := range keys {
		requested[key] = true
	}
	outcomes := make(map[string]remote.Asset, len(resp.Assets))
	for _, a := range resp.Assets {
		if !requested[a.Key] {
			slog.Warn("Ignoring unrequested asset in response", "key", a.Key)
			continue
		}
		if _, dup := outcomes[a.Key]; dup {
			continue
		}
		outcomes[a.Key] = a
	}
	return outcomes, known, nil
}

// apply commits the outcomes to the cache directory while holding the
// directory lock: every 304 is touched first, then fresh payloads are written
// one at a time. Keys that were sent as known but whose slot is gone by now
// are returned as stale instead of being resolved.
func (c *Client) apply(ctx context.Context, keys []string, fingerprints map[string]string, outcomes map[string]remote.Asset, known map[string]string) (map[string]Asset, []string) {
	lock := c.store.Locker()
	lock.Lock()
	defer lock.Unlock()

	resolved := make(map[string]Asset, len(keys))
	var stale []string

	for _, key := range keys {
		outcome, ok := outcomes[key]
		if !ok || !outcome.NotModified() {
			continue
		}
		fp := fingerprints[key]
		asset := Asset{Key: key, Fingerprint: fp, Path: c.store.Path(fp)}
		err := c.store.Touch(ctx, fp)
		switch {
		case err == nil:
			asset.Status = StatusHit
		case errors.Is(err, ErrNotFound) && known[key] != "":
			stale = append(stale, key)
			continue
		default:
			asset.Err = &AssetError{Key: key, Status: outcome.Status, Err: err}
		}
		resolved[key] = c.finish(asset)
	}

	for _, key := range keys {
		outcome, ok := outcomes[key]
		if ok && outcome.NotModified() {
			continue
		}
		fp := fingerprints[key]
		asset := Asset{Key: key, Fingerprint: fp, Path: c.store.Path(fp)}

		switch {
		case !ok:
			asset.Err = &AssetError{Key: key, Err: errNoOutcome}
		case outcome.Fresh():
			overCapacity, err := c.commit(ctx, fp, outcome)
			if err != nil {
				asset.Err = &AssetError{Key: key, Status: outcome.Status, Err: err}
			} else {
				asset.Status = StatusMiss
				asset.OverCapacity = overCapacity
			}
		default:
			asset.Err = &AssetError{Key: key, Status: outcome.Status, Err: remoteAssetError(outcome)}
		}
		resolved[key] = c.finish(asset)
	}
	return resolved, stale
}

func (c *Client) finish(asset Asset) Asset {
	if asset.Err != nil {
		asset.Path = ""
		asset.Status = StatusError
		errutil.LogMsg(asset.Err, "Asset not loaded", "key", asset.Key)
	} else {
		slog.Debug("Asset loaded", "key", asset.Key, "status", asset.Status, "path", asset.Path)
	}
	metrics.LoadedAssets.WithLabelValues(asset.Status.String()).Inc()
	return asset
}

// commit decodes a fresh payload, makes room for it, then writes it. The
// directory lock must be held.
func (c *Client) commit(ctx context.Context, fp string, outcome remote.Asset) (bool, error) {
	payload, err := outcome.Payload()
	if err != nil {
		return false, err
	}
	report, err := c.evictor.MakeRoom(ctx, int64(len(payload)))
	if err != nil {
		return false, fmt.Errorf("failed to make room: %w", err)
	}
	if _, err := c.store.Write(ctx, fp, bytes.NewReader(payload)); err != nil {
		return false, err
	}
	return report.OverCapacity, nil
}

func remoteAssetError(a remote.Asset) error {
	if a.Error != "" {
		return fmt.Errorf("%w: %s", &HTTPStatusError{StatusCode: a.Status}, a.Error)
	}
	return &HTTPStatusError{StatusCode: a.Status}
}
