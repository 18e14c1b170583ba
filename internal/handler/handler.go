package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasew/assetcache"
	"github.com/lucasew/assetcache/internal/errutil"
	"golang.org/x/sync/singleflight"
)

// Loader resolves asset keys to local files.
type Loader interface {
	Load(ctx context.Context, key string) (string, error)
	Cached(ctx context.Context, key string) (string, error)
}

// AssetHandler serves cached assets by key.
//
// GET revalidates the key against the remote store and streams the local slot.
// HEAD only looks at the local cache and never contacts the remote store.
// Concurrent requests for the same key share one revalidation.
type AssetHandler struct {
	Loader Loader
	Prefix string

	group singleflight.Group
}

func NewAssetHandler(loader Loader) *AssetHandler {
	return &AssetHandler{
		Loader: loader,
		Prefix: "/assets/",
	}
}

// ServeHTTP handles the /assets/{key} requests. The key may contain slashes.
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, ok := strings.CutPrefix(r.URL.Path, h.Prefix)
	if !ok || key == "" {
		http.Error(w, "Invalid path format. Expected "+h.Prefix+"{key}", http.StatusBadRequest)
		return
	}

	var path string
	var err error
	if r.Method == http.MethodHead {
		path, err = h.Loader.Cached(r.Context(), key)
	} else {
		path, err = h.load(r.Context(), key)
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			errutil.ReportError(err, "Failed to load asset", "key", key)
		} else {
			slog.Debug("Asset not served", "key", key, "status", status, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		// Evicted between load and open.
		errutil.LogMsg(err, "Failed to open slot", "key", key, "path", path)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer func() {
		errutil.LogMsg(f.Close(), "Failed to close slot", "path", path)
	}()
	info, err := f.Stat()
	if err != nil {
		errutil.ReportError(err, "Failed to stat slot", "path", path)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", `"`+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+`"`)
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (h *AssetHandler) load(ctx context.Context, key string) (string, error) {
	v, err, shared := h.group.Do(key, func() (any, error) {
		// Detached so one client going away does not fail the others.
		return h.Loader.Load(context.WithoutCancel(ctx), key)
	})
	if shared {
		slog.Debug("Shared revalidation", "key", key)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func statusFor(err error) int {
	var assetErr *assetcache.AssetError
	switch {
	case errors.Is(err, assetcache.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, assetcache.ErrRemoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, assetcache.ErrNotFound), errors.As(err, &assetErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
