package assetcache

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lucasew/assetcache/internal/hashutil"
)

const (
	// DefaultMaxCacheSize is the byte budget used when Config.MaxCacheSize is zero.
	DefaultMaxCacheSize int64 = 500 * 1024 * 1024
	DefaultExtension          = "webp"
	DefaultEvictionStrategy   = "lru"
	DefaultTimeout            = 30 * time.Second
	DefaultParallelism        = 4
)

// Credentials injects caller identity into requests sent to the remote store.
type Credentials interface {
	Apply(req *http.Request)
}

// Config is the complete, immutable configuration of a Client.
type Config struct {
	// BaseURL of the remote store API, e.g. https://api.example.com/api/v1.
	BaseURL string
	APIKey  string
	Project string
	Bucket  string
	// Credentials overrides the APIKey/Project/Bucket headers when set.
	Credentials Credentials

	CacheDir string
	// MaxCacheSize is the byte budget of CacheDir. Zero means
	// DefaultMaxCacheSize; there is no unlimited setting.
	MaxCacheSize int64
	// MinFreeSpace, if positive, also keeps this many bytes free on the cache volume.
	MinFreeSpace     int64
	Extension        string
	Algo             string
	EvictionStrategy string
	// IndexPath, if set, stores last-access instants in a sqlite index at
	// this path instead of relying on file mtimes. It must live outside CacheDir.
	IndexPath string

	Timeout     time.Duration
	Parallelism int
	HTTPClient  *http.Client
}

func (c Config) withDefaults() Config {
	if c.MaxCacheSize == 0 {
		c.MaxCacheSize = DefaultMaxCacheSize
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if c.Algo == "" {
		c.Algo = hashutil.DefaultAlgo
	}
	if c.EvictionStrategy == "" {
		c.EvictionStrategy = DefaultEvictionStrategy
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Parallelism == 0 {
		c.Parallelism = DefaultParallelism
	}
	return c
}

// Validate reports the first invalid field, after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.BaseURL == "":
		return errors.New("base URL is required")
	case c.CacheDir == "":
		return errors.New("cache dir is required")
	case c.MaxCacheSize < 0:
		return fmt.Errorf("max cache size must be >= 0, got %d", c.MaxCacheSize)
	case c.MinFreeSpace < 0:
		return fmt.Errorf("min free space must be >= 0, got %d", c.MinFreeSpace)
	case c.Timeout < 0:
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	case c.Parallelism < 0:
		return fmt.Errorf("parallelism must be >= 0, got %d", c.Parallelism)
	case !hashutil.IsSupported(c.Algo):
		return fmt.Errorf("unsupported fingerprint algorithm: %s", c.Algo)
	}
	return nil
}
