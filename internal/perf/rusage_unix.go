//go:build unix

package perf

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

func rusage() (user, sys time.Duration, maxRSSKB int64) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, 0, 0
	}
	rss := int64(ru.Maxrss)
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		// Reported in bytes there, kilobytes everywhere else.
		rss /= 1024
	}
	return time.Duration(ru.Utime.Nano()), time.Duration(ru.Stime.Nano()), rss
}
