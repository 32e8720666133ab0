// Package logging provides leveled logging and move tracing for egress.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (run progress, setup decisions)
//   - An EventLogger writing one JSONL line per agent move (.egress/moves.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/egress/internal/geom"
)

// LevelTrace is a custom slog level below Debug for per-tick output.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// MoveEvent records one agent tick that changed, or tried to change, the grid.
type MoveEvent struct {
	Time     time.Time  `json:"time"`
	Strategy string     `json:"strategy"`
	Agent    int        `json:"agent"`
	Outcome  string     `json:"outcome"`
	From     geom.Point `json:"from"`
	To       geom.Point `json:"to"`
	Exited   int        `json:"exited"`
}

// EventLogger writes MoveEvents to a JSONL file.
// It is safe for concurrent use. A nil EventLogger is safe to use;
// all methods are no-ops on nil receiver.
type EventLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEventLogger creates an event logger writing to dir/moves.jsonl.
// At "info" level (the default) it returns nil and no file is created,
// since a large population produces one line per move.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "moves.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &EventLogger{file: f, enc: json.NewEncoder(f)}
}

// Log appends ev as a single JSONL line, stamping Time when unset.
// Safe to call on nil receiver.
func (el *EventLogger) Log(ev MoveEvent) {
	if el == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.file == nil {
		return
	}
	_ = el.enc.Encode(ev)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}
