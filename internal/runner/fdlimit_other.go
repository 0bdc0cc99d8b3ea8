//go:build !linux && !darwin

package runner

// fdSoftLimit is not available on this platform.
func fdSoftLimit() uint64 {
	return 0
}
