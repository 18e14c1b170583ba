package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucasew/assetcache"
	"github.com/lucasew/assetcache/internal/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Port   int
	Client *assetcache.Client
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration
}

// NewServer builds the HTTP server of the serve command.
func NewServer(cfg Config) (*http.Server, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("a cache client is required")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("/assets/", handler.NewAssetHandler(cfg.Client))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		count, total, err := cfg.Client.Usage(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, "ok slots=%d bytes=%d\n", count, total)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting asset server", "addr", addr, "cache_dir", cfg.Client.CacheDir())

	return &http.Server{
		Addr:              addr,
		Handler:           metricsMiddleware(mux),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}
