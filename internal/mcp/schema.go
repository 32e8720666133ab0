// Package mcp provides an MCP (Model Context Protocol) server for egress.
package mcp

import (
	"time"
)

// EgressRunInput defines the input for the egress_run tool.
// Zero values fall back to the server's configuration.
type EgressRunInput struct {
	Strategy  string  `json:"strategy,omitempty" jsonschema:"One of sequential, concurrent or both"`
	Agents    int     `json:"agents,omitempty" jsonschema:"Number of agents to place; overrides agents_pow"`
	AgentsPow int     `json:"agents_pow,omitempty" jsonschema:"Place 2 to the power agents_pow agents"`
	XSize     int     `json:"x_size,omitempty" jsonschema:"Grid width in cells"`
	YSize     int     `json:"y_size,omitempty" jsonschema:"Grid height in cells"`
	Seed      *uint64 `json:"seed,omitempty" jsonschema:"Placement seed; the same seed gives the same starting grid"`
	Layout    string  `json:"layout,omitempty" jsonschema:"Obstacle layout: sample or empty"`
	Runs      int     `json:"runs,omitempty" jsonschema:"Repetitions per strategy for timing"`
	Render    bool    `json:"render,omitempty" jsonschema:"Include the final grid drawn as text"`
}

// EgressRunOutput defines the output for the egress_run tool.
type EgressRunOutput struct {
	Runs    []RunSummary `json:"runs" jsonschema:"One entry per strategy executed"`
	Grid    string       `json:"grid,omitempty" jsonschema:"Final grid of the last strategy when render was set"`
	Message string       `json:"message" jsonschema:"Human-readable result message"`
}

// RunSummary is the compact view of one recorded run.
type RunSummary struct {
	ID        string        `json:"id,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
	Strategy  string        `json:"strategy"`
	Status    string        `json:"status"`
	Grid      string        `json:"grid_size"`
	Agents    int           `json:"agents"`
	Seed      uint64        `json:"seed"`
	Exited    int           `json:"exited"`
	Ticks     int           `json:"ticks"`
	Moves     int           `json:"moves"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	MaxRSSKB  int64         `json:"max_rss_kb,omitempty"`
}

// EgressHistoryInput defines the input for the egress_history tool.
type EgressHistoryInput struct {
	Strategy string `json:"strategy,omitempty" jsonschema:"Only list runs of this strategy"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to return (default 20)"`
}

// EgressHistoryOutput defines the output for the egress_history tool.
type EgressHistoryOutput struct {
	Runs  []RunSummary `json:"runs" jsonschema:"Recorded runs, newest first"`
	Count int          `json:"count" jsonschema:"Number of runs returned"`
}

// EgressGetRunInput defines the input for the egress_get_run tool.
type EgressGetRunInput struct {
	ID string `json:"id" jsonschema:"Run identifier as returned by egress_run or egress_history"`
}

// EgressGetRunOutput defines the output for the egress_get_run tool.
type EgressGetRunOutput struct {
	Run       RunSummary `json:"run"`
	Layout    string     `json:"layout"`
	Target    string     `json:"target"`
	Stays     int        `json:"stays"`
	Blocked   int        `json:"blocked"`
	ExitOrder []int      `json:"exit_order" jsonschema:"Agent ids in the order they left the grid"`
}
