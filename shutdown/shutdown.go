// Package shutdown ties process signals to a context.
package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a context cancelled on the first shutdown signal.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, Signals()...)
}
