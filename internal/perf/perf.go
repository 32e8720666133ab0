// Package perf measures wall-clock time, CPU time, and peak memory of a
// piece of work, and aggregates repeated measurements.
package perf

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrTooFewRuns is returned by MedianThree when fewer than three
// measurements are available.
var ErrTooFewRuns = errors.New("need at least three runs")

// Sample is a process resource reading taken at one instant.
type Sample struct {
	Wall     time.Time
	User     time.Duration
	System   time.Duration
	MaxRSSKB int64
}

// Result is the cost of a measured section.
type Result struct {
	Wall   time.Duration `json:"wall"`
	User   time.Duration `json:"user"`
	System time.Duration `json:"system"`
	// MaxRSSKB is the process peak resident set size in kilobytes at the
	// end of the section. It never decreases over a process lifetime.
	MaxRSSKB int64 `json:"max_rss_kb"`
}

// Measure reads the current process resource usage.
func Measure() Sample {
	user, sys, rss := rusage()
	return Sample{Wall: time.Now(), User: user, System: sys, MaxRSSKB: rss}
}

// Sub returns the cost between start and s.
func (s Sample) Sub(start Sample) Result {
	return Result{
		Wall:     s.Wall.Sub(start.Wall),
		User:     s.User - start.User,
		System:   s.System - start.System,
		MaxRSSKB: s.MaxRSSKB,
	}
}

// Since returns the cost from start until now.
func Since(start Sample) Result {
	return Measure().Sub(start)
}

// Run measures fn.
func Run(fn func() error) (Result, error) {
	start := Measure()
	err := fn()
	return Since(start), err
}

func (r Result) String() string {
	return fmt.Sprintf("wall %v, user %v, sys %v, maxrss %d KB", r.Wall, r.User, r.System, r.MaxRSSKB)
}

// MedianThree sorts results by wall time and returns the middle three.
// With an even count the lower-middle window is used.
func MedianThree(results []Result) ([]Result, error) {
	if len(results) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewRuns, len(results))
	}
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b Result) int {
		return cmp.Compare(a.Wall, b.Wall)
	})
	mid := (len(sorted) - 3) / 2
	return sorted[mid : mid+3], nil
}

// Mean averages results field by field. It returns a zero Result for an
// empty slice.
func Mean(results []Result) Result {
	if len(results) == 0 {
		return Result{}
	}
	var sum Result
	for _, r := range results {
		sum.Wall += r.Wall
		sum.User += r.User
		sum.System += r.System
		sum.MaxRSSKB += r.MaxRSSKB
	}
	n := len(results)
	return Result{
		Wall:     sum.Wall / time.Duration(n),
		User:     sum.User / time.Duration(n),
		System:   sum.System / time.Duration(n),
		MaxRSSKB: sum.MaxRSSKB / int64(n),
	}
}
