//go:build windows

package mcp

import (
	"os"
	"os/signal"
)

// notifySignals routes Ctrl+C to ch, which ends the stdio session.
// Windows has no SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
