// Package assetcache keeps a size-bounded local copy of assets held by a
// remote store. Keys are revalidated in batches with conditional requests,
// and the least recently used files are evicted before each write.
package assetcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lucasew/assetcache/internal/db"
	"github.com/lucasew/assetcache/internal/eviction"
	_ "github.com/lucasew/assetcache/internal/eviction/lru"
	"github.com/lucasew/assetcache/internal/eviction/policy"
	"github.com/lucasew/assetcache/internal/eviction/policy/maxsize"
	"github.com/lucasew/assetcache/internal/eviction/policy/minfree"
	"github.com/lucasew/assetcache/internal/hashutil"
	"github.com/lucasew/assetcache/internal/remote"
	"github.com/lucasew/assetcache/internal/repository"
)

// EvictionReport summarizes one eviction pass.
type EvictionReport = eviction.Report

type remoteStore interface {
	Revalidate(ctx context.Context, req remote.RevalidateRequest) (*remote.RevalidateResponse, error)
	Upload(ctx context.Context, filename string, content io.Reader) (json.RawMessage, error)
}

// Client is a disk cache in front of a remote asset store.
//
// A Client is safe for concurrent use. Every Client opened on the same cache
// directory in one process shares a lock, so concurrent loads never push the
// directory over its budget.
type Client struct {
	cfg     Config
	deriver *hashutil.Deriver
	store   *repository.LocalRepository
	evictor *eviction.Manager
	remote  remoteStore
	index   *db.DB
}

// New creates a Client, creating the cache directory if needed.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.withDefaults()

	deriver, err := hashutil.NewDeriver(cfg.Algo)
	if err != nil {
		return nil, err
	}

	strat, err := eviction.GetStrategy(cfg.EvictionStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize eviction strategy: %w", err)
	}

	opts := []repository.Option{repository.WithExtension(cfg.Extension)}

	var index *db.DB
	if cfg.IndexPath != "" {
		if err := checkIndexPath(cfg.CacheDir, cfg.IndexPath); err != nil {
			return nil, err
		}
		index, err = db.Open(cfg.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open access index at %s: %w", cfg.IndexPath, err)
		}
		opts = append(opts, repository.WithIndex(index))
	}

	store, err := repository.NewLocalRepository(cfg.CacheDir, opts...)
	if err != nil {
		if index != nil {
			_ = index.Close()
		}
		return nil, err
	}

	policies := []policy.Policy{&maxsize.Policy{MaxBytes: cfg.MaxCacheSize}}
	if cfg.MinFreeSpace > 0 {
		slog.Debug("Adding MinFreeSpace policy", "min_free", cfg.MinFreeSpace)
		policies = append(policies, &minfree.Policy{Path: store.CacheDir, MinFreeBytes: cfg.MinFreeSpace})
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = remote.StaticCredentials{APIKey: cfg.APIKey, Project: cfg.Project, Bucket: cfg.Bucket}
	}

	return &Client{
		cfg:     cfg,
		deriver: deriver,
		store:   store,
		evictor: eviction.NewManager(store, policies, strat),
		remote:  remote.NewClient(cfg.BaseURL, cfg.HTTPClient, creds, cfg.Timeout),
		index:   index,
	}, nil
}

func checkIndexPath(cacheDir, indexPath string) error {
	dir, err1 := filepath.Abs(cacheDir)
	idx, err2 := filepath.Abs(indexPath)
	if err := errors.Join(err1, err2); err != nil {
		return err
	}
	rel, err := filepath.Rel(dir, idx)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("index path %s must be outside the cache dir", indexPath)
	}
	return nil
}

// Close releases the access index, if any.
func (c *Client) Close() error {
	if c.index != nil {
		return c.index.Close()
	}
	return nil
}

// CacheDir returns the absolute cache directory.
func (c *Client) CacheDir() string {
	return c.store.CacheDir
}

// Fingerprint returns the slot name used for key.
func (c *Client) Fingerprint(key string) string {
	return c.deriver.Fingerprint(key)
}

// Cached returns the local path of key without contacting the remote store,
// or ErrNotFound. The content may be stale.
func (c *Client) Cached(ctx context.Context, key string) (string, error) {
	return c.store.Read(ctx, c.deriver.Fingerprint(key))
}

// Prune evicts slots until the cache satisfies its policies again, for
// example after the budget was lowered.
func (c *Client) Prune(ctx context.Context) (EvictionReport, error) {
	return c.evictor.Prune(ctx)
}

// Usage returns the number of slots and their total size in bytes.
func (c *Client) Usage(ctx context.Context) (int, int64, error) {
	return c.evictor.Usage(ctx)
}
