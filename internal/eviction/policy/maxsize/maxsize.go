package maxsize

// Policy keeps total occupancy at or under a fixed byte budget.
type Policy struct {
	MaxBytes int64
}

func (m *Policy) BytesToFree(currentSize, incoming int64) (int64, error) {
	if total := currentSize + incoming; total > m.MaxBytes {
		return total - m.MaxBytes, nil
	}
	return 0, nil
}

func (m *Policy) Capacity() int64 {
	return m.MaxBytes
}
