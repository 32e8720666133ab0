//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals routes SIGINT and SIGTERM to ch. signalContext turns the
// first one into a cancelled run; the partial result is still printed and
// recorded as cancelled.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
