//go:build !unix

package perf

import "time"

// rusage has no portable source of CPU time here; only wall time is measured.
func rusage() (user, sys time.Duration, maxRSSKB int64) {
	return 0, 0, 0
}
