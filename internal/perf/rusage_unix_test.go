//go:build unix

package perf

import "testing"

func TestMeasure_ReportsMemory(t *testing.T) {
	if s := Measure(); s.MaxRSSKB <= 0 {
		t.Errorf("MaxRSSKB = %d, want positive", s.MaxRSSKB)
	}
}
