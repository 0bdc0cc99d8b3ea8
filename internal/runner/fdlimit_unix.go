//go:build linux || darwin

package runner

import "golang.org/x/sys/unix"

// fdSoftLimit returns the soft RLIMIT_NOFILE, or 0 when it cannot be read.
func fdSoftLimit() uint64 {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0
	}
	return rl.Cur
}
