//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// notifyContext cancels the command context on Ctrl-C, stopping a running
// export before its PDF is written. Windows has no SIGTERM to watch.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
