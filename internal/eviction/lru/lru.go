package lru

import (
	"slices"

	"github.com/lucasew/assetcache/internal/eviction"
	"github.com/lucasew/assetcache/internal/repository"
)

// LRU implements the eviction.Strategy interface using Least Recently Used logic.
// Ties on the access time are broken by fingerprint so the order is stable.
type LRU struct{}

func init() {
	eviction.Register("lru", func() eviction.Strategy {
		return New()
	})
}

func New() *LRU {
	return &LRU{}
}

func (l *LRU) Order(slots []repository.Slot) []repository.Slot {
	out := slices.Clone(slots)
	slices.SortFunc(out, func(a, b repository.Slot) int {
		if c := a.LastAccess.Compare(b.LastAccess); c != 0 {
			return c
		}
		if a.Fingerprint < b.Fingerprint {
			return -1
		}
		if a.Fingerprint > b.Fingerprint {
			return 1
		}
		return 0
	})
	return out
}
