package policy

// Policy defines the interface for checking if eviction is needed.
type Policy interface {
	// BytesToFree returns how many bytes of existing slots must go so that
	// incoming more bytes fit. Returns 0 if no eviction is needed.
	BytesToFree(currentSize, incoming int64) (int64, error)
}

// Bounded is implemented by policies with a fixed byte capacity. A payload
// larger than the capacity can never fit, however much is evicted.
type Bounded interface {
	Capacity() int64
}
