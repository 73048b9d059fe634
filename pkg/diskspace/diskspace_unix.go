//go:build unix

package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func check(dir string, required int64) (int64, bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, false, fmt.Errorf("statfs %s: %w", dir, err)
	}

	available := int64(st.Bavail) * int64(st.Bsize)
	return available, available >= required, nil
}
