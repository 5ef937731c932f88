// Package kernel provides the OS abstractions the daemon's bootstrap needs:
// signal delivery and the single-instance startup lock (spec §4.9).
package kernel

import (
	"os"
	"os/signal"
	"syscall"
)

// Signals is a channel of the three triggers that start the shutdown
// sequence: SIGTERM, SIGINT, SIGHUP. The daemon does not treat SIGHUP as a
// distinct "reload everything" signal in this spec; all three are terminal.
func Signals() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	return ch
}

// StopSignals unregisters ch from further delivery.
func StopSignals(ch chan os.Signal) {
	signal.Stop(ch)
}
