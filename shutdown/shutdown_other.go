//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// Signals are the signals that end a coaching run.
func Signals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
