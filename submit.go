package assetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/lucasew/assetcache/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Submission is the outcome of uploading one file.
type Submission struct {
	Path string
	// Ack is the remote store's acknowledgment, passed through uninterpreted.
	Ack json.RawMessage
	Err error
}

// SubmitOption configures SubmitMany.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	onDone func(Submission)
}

// WithProgress calls fn once per file as soon as its upload finishes. fn may
// be called from several goroutines at once.
func WithProgress(fn func(Submission)) SubmitOption {
	return func(o *submitOptions) {
		o.onDone = fn
	}
}

// Submit uploads the file at path and returns the remote acknowledgment.
func (c *Client) Submit(ctx context.Context, path string) (json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		errutil.LogMsg(f.Close(), "Failed to close submitted file", "path", path)
	}()

	ack, err := c.remote.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, classify(err)
	}
	return ack, nil
}

// SubmitMany uploads every path with at most parallelism uploads in flight
// (Config.Parallelism when parallelism <= 0). A failed upload does not stop
// the others; the returned slice has one Submission per path, in input order.
func (c *Client) SubmitMany(ctx context.Context, paths []string, parallelism int, opts ...SubmitOption) []Submission {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	if parallelism <= 0 {
		parallelism = c.cfg.Parallelism
	}

	results := make([]Submission, len(paths))

	// Plain Group: a failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Submission{Path: path, Err: fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)}
			} else {
				ack, err := c.Submit(ctx, path)
				results[i] = Submission{Path: path, Ack: ack, Err: err}
			}
			if results[i].Err != nil {
				errutil.LogMsg(results[i].Err, "Upload failed", "path", path)
				metrics.Uploads.WithLabelValues("error").Inc()
			} else {
				metrics.Uploads.WithLabelValues("ok").Inc()
			}
			if o.onDone != nil {
				o.onDone(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
