package eviction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lucasew/assetcache/internal/errutil"
	"github.com/lucasew/assetcache/internal/eviction/policy"
	"github.com/lucasew/assetcache/internal/metrics"
)

// ErrOverCapacity is reported, never returned, when a single payload is larger
// than everything the policies allow. The cache is drained and the write proceeds.
var ErrOverCapacity = errors.New("incoming payload exceeds cache capacity")

// Manager keeps a cache directory within its capacity policies.
type Manager struct {
	store    Store
	policies []policy.Policy
	strategy Strategy
}

// NewManager creates a new eviction Manager.
func NewManager(store Store, policies []policy.Policy, strategy Strategy) *Manager {
	return &Manager{
		store:    store,
		policies: policies,
		strategy: strategy,
	}
}

// MakeRoom evicts slots until incoming more bytes fit under every policy, or
// until nothing is left. It runs before the incoming slot is written.
//
// The caller must hold the store's Locker for the duration of MakeRoom and
// the write that follows it.
func (m *Manager) MakeRoom(ctx context.Context, incoming int64) (Report, error) {
	if incoming < 0 {
		return Report{}, fmt.Errorf("negative incoming size %d", incoming)
	}

	slots, err := m.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list cache: %w", err)
	}

	var current int64
	for _, s := range slots {
		current += s.Size
	}

	var maxToFree int64
	for _, p := range m.policies {
		toFree, err := p.BytesToFree(current, incoming)
		if err != nil {
			errutil.ReportError(err, "Failed to check capacity policy")
			continue
		}
		if toFree > maxToFree {
			maxToFree = toFree
		}
	}

	report := Report{Remaining: current}
	if maxToFree <= 0 {
		return report, nil
	}

	targetSize := current - maxToFree
	if targetSize < 0 {
		targetSize = 0
		if report.OverCapacity = m.exceedsCapacity(incoming); !report.OverCapacity {
			slog.Warn("Eviction alone cannot satisfy capacity policies", "incoming", incoming, "to_free", maxToFree, "current", current)
		}
	}

	for _, victim := range m.strategy.Order(slots) {
		if current <= targetSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := m.store.Delete(ctx, victim.Fingerprint); err != nil {
			// Still on disk, so it still counts.
			errutil.ReportError(err, "Failed to evict slot", "fingerprint", victim.Fingerprint)
			continue
		}
		current -= victim.Size
		report.Evicted++
		report.FreedBytes += victim.Size
		metrics.EvictedSlots.Inc()
		metrics.EvictedBytes.Add(float64(victim.Size))
	}
	report.Remaining = current

	slog.Info("Evicted slots", "count", report.Evicted, "freed", report.FreedBytes, "incoming", incoming, "remaining", current)
	if report.OverCapacity {
		metrics.OverCapacity.Inc()
		errutil.LogMsg(ErrOverCapacity, "Cache drained for oversized payload", "incoming", incoming)
	}
	return report, nil
}

// exceedsCapacity reports whether incoming is larger than the fixed budget of
// any bounded policy.
func (m *Manager) exceedsCapacity(incoming int64) bool {
	for _, p := range m.policies {
		if b, ok := p.(policy.Bounded); ok && incoming > b.Capacity() {
			return true
		}
	}
	return false
}

// Prune brings the cache back within its policies without an incoming write.
func (m *Manager) Prune(ctx context.Context) (Report, error) {
	lock := m.store.Locker()
	lock.Lock()
	defer lock.Unlock()
	return m.MakeRoom(ctx, 0)
}

// Usage returns the number of slots and their total size.
func (m *Manager) Usage(ctx context.Context) (int, int64, error) {
	slots, err := m.store.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list cache: %w", err)
	}
	var total int64
	for _, s := range slots {
		total += s.Size
	}
	return len(slots), total, nil
}
