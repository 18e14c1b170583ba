package minfree

import (
	"fmt"
	"log/slog"
	"syscall"
)

// Policy keeps a minimum amount of free space on the cache volume after
// the incoming bytes have been written.
type Policy struct {
	Path         string
	MinFreeBytes int64
}

func (m *Policy) BytesToFree(currentSize, incoming int64) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(m.Path, &stat); err != nil {
		return 0, fmt.Errorf("failed to check disk space: %w", err)
	}

	freeAfter := int64(stat.Bavail)*int64(stat.Bsize) - incoming

	slog.Debug("Disk space check", "path", m.Path, "free_after_write", freeAfter, "min_required", m.MinFreeBytes)

	if freeAfter < m.MinFreeBytes {
		return m.MinFreeBytes - freeAfter, nil
	}
	return 0, nil
}
