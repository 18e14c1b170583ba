package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lucasew/assetcache/internal/errutil"
)

const (
	defaultExtension = "webp"
	tempPrefix       = ".put-"
)

// dirLocks holds one mutex per absolute cache directory so that every
// repository opened on the same directory serializes its mutations.
var dirLocks sync.Map

// LocalRepository stores cache slots as flat files named
// {cacheDir}/{fingerprint}.{ext}. It has no manifest: enumeration is a
// directory listing and the LRU clock is the file mtime, unless an
// AccessIndex is configured.
type LocalRepository struct {
	CacheDir string
	ext      string
	index    AccessIndex
	now      func() time.Time
	mu       *sync.Mutex
}

// Option configures a LocalRepository.
type Option func(*LocalRepository)

// WithExtension sets the content-type suffix of slot files (without the dot).
func WithExtension(ext string) Option {
	return func(r *LocalRepository) {
		r.ext = strings.TrimPrefix(ext, ".")
	}
}

// WithIndex uses index as the last-access clock instead of file mtimes.
func WithIndex(index AccessIndex) Option {
	return func(r *LocalRepository) {
		r.index = index
	}
}

// WithClock overrides the time source used for writes and touches.
func WithClock(now func() time.Time) Option {
	return func(r *LocalRepository) {
		r.now = now
	}
}

// NewLocalRepository opens cacheDir, creating it if needed.
func NewLocalRepository(cacheDir string, opts ...Option) (*LocalRepository, error) {
	if cacheDir == "" {
		return nil, errors.New("cache dir is empty")
	}
	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	r := &LocalRepository{
		CacheDir: abs,
		ext:      defaultExtension,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ext == "" {
		return nil, errors.New("slot extension is empty")
	}

	mu, _ := dirLocks.LoadOrStore(abs, &sync.Mutex{})
	r.mu = mu.(*sync.Mutex)
	return r, nil
}

// Locker returns the mutex shared by all repositories on this directory.
func (r *LocalRepository) Locker() sync.Locker {
	return r.mu
}

// Path returns where the slot for fingerprint lives, whether or not it exists.
func (r *LocalRepository) Path(fingerprint string) string {
	return filepath.Join(r.CacheDir, fingerprint+"."+r.ext)
}

func (r *LocalRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	_, err := os.Stat(r.Path(fingerprint))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Read returns the path of an existing slot or ErrNotFound.
func (r *LocalRepository) Read(ctx context.Context, fingerprint string) (string, error) {
	ok, err := r.Exists(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
	}
	return r.Path(fingerprint), nil
}

// Write stores content as the slot for fingerprint, replacing any previous one.
//
// Content goes to a hidden temporary file in the cache directory first and is
// renamed into place, so a concurrent reader sees either the old slot or the
// complete new one.
func (r *LocalRepository) Write(ctx context.Context, fingerprint string, content io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(r.CacheDir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpFile.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errutil.LogMsg(err, "Failed to remove temp file", "path", tmpFile.Name())
		}
	}()
	defer func() { _ = tmpFile.Close() }()

	written, err := io.Copy(tmpFile, content)
	if err != nil {
		return 0, fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	finalPath := r.Path(fingerprint)
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		return 0, fmt.Errorf("failed to rename to final path: %w", err)
	}

	if err := r.stamp(ctx, fingerprint, finalPath); err != nil {
		return written, err
	}

	slog.Debug("Stored slot", "fingerprint", fingerprint, "size", written)
	return written, nil
}

// Touch marks the slot as just used without changing its content.
func (r *LocalRepository) Touch(ctx context.Context, fingerprint string) error {
	path := r.Path(fingerprint)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
		}
		return err
	}
	return r.stamp(ctx, fingerprint, path)
}

func (r *LocalRepository) stamp(ctx context.Context, fingerprint, path string) error {
	now := r.now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("failed to update access time: %w", err)
	}
	if r.index != nil {
		return r.index.Touch(ctx, fingerprint, now)
	}
	return nil
}

// List enumerates every slot. Order is unspecified.
func (r *LocalRepository) List(ctx context.Context) ([]Slot, error) {
	entries, err := os.ReadDir(r.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache dir: %w", err)
	}

	var indexed map[string]time.Time
	if r.index != nil {
		if indexed, err = r.index.LastAccess(ctx); err != nil {
			return nil, err
		}
	}

	suffix := "." + r.ext
	slots := make([]Slot, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed while listing.
				continue
			}
			return nil, err
		}

		fp := strings.TrimSuffix(name, suffix)
		last := info.ModTime()
		if t, ok := indexed[fp]; ok {
			last = t
		}
		slots = append(slots, Slot{Fingerprint: fp, Size: info.Size(), LastAccess: last})
	}
	return slots, nil
}

// Delete removes a slot. Deleting an absent slot succeeds.
func (r *LocalRepository) Delete(ctx context.Context, fingerprint string) error {
	if err := os.Remove(r.Path(fingerprint)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if r.index != nil {
		return r.index.Forget(ctx, fingerprint)
	}
	return nil
}
