package eviction

import (
	"context"
	"sync"

	"github.com/lucasew/assetcache/internal/repository"
)

// Strategy decides the order in which slots are given up.
type Strategy interface {
	// Order returns slots sorted from first to evict to last. It must not
	// modify the input slice and must be deterministic for equal inputs.
	Order(slots []repository.Slot) []repository.Slot
}

// Store is the slot storage the manager evicts from.
type Store interface {
	List(ctx context.Context) ([]repository.Slot, error)
	Delete(ctx context.Context, fingerprint string) error
	Locker() sync.Locker
}

// Report summarizes one MakeRoom pass.
type Report struct {
	Evicted      int
	FreedBytes   int64
	Remaining    int64
	OverCapacity bool
}
