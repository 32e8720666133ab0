// Package store defines the RunStore interface for recording and querying
// the history of evacuation runs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded execution of a strategy.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Parameters
	Strategy string `json:"strategy"`
	Layout   string `json:"layout"`
	XSize    int    `json:"x_size"`
	YSize    int    `json:"y_size"`
	Agents   int    `json:"agents"`
	Seed     uint64 `json:"seed"`
	TargetX  int    `json:"target_x"`
	TargetY  int    `json:"target_y"`

	// Outcome
	Status    RunStatus     `json:"status"`
	Exited    int           `json:"exited"`
	Ticks     int           `json:"ticks"`
	Moves     int           `json:"moves"`
	Stays     int           `json:"stays"`
	Blocked   int           `json:"blocked"`
	Elapsed   time.Duration `json:"elapsed"`
	ExitOrder []int         `json:"exit_order,omitempty"`

	// Resource usage, zero when measurement was off.
	UserTime   time.Duration `json:"user_time,omitempty"`
	SystemTime time.Duration `json:"system_time,omitempty"`
	MaxRSSKB   int64         `json:"max_rss_kb,omitempty"`
}

// RunStatus records how a run ended.
type RunStatus string

const (
	StatusComplete  RunStatus = "complete"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Strategy string
	// Limit caps the number of runs returned, newest first. Zero means no cap.
	Limit int
}

// RunStore defines the interface for persisting run history.
type RunStore interface {
	// RecordRun stores run, assigning an ID and CreatedAt when unset,
	// and returns the ID.
	RecordRun(ctx context.Context, run Run) (string, error)

	// GetRun returns the run with id, or ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns matching runs, newest first. ExitOrder is not loaded.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// DeleteRun removes a run and its exit order.
	DeleteRun(ctx context.Context, id string) error

	// Close releases any resources.
	Close() error
}
