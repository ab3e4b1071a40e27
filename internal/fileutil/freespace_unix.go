//go:build unix

package fileutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeSpace reports the free bytes available to unprivileged writers on the
// filesystem containing path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
