// Package goroutine provides panic containment for background
// goroutines. A panic in a worker must not take down the server.
package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// stackBufferSize bounds the captured stack trace.
const stackBufferSize = 4096

// Recover logs a recovered panic with its stack trace. Use as a deferred
// call at the top of every long-running goroutine. Falls back to stderr
// when no logger is available so the panic is never silently lost.
func Recover(name string, logger *zap.SugaredLogger) {
	r := recover()
	if r == nil {
		return
	}

	buf := make([]byte, stackBufferSize)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(buf[:n]),
		)
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, buf[:n])
}

// Go runs fn in a new goroutine with panic recovery attached.
func Go(name string, logger *zap.SugaredLogger, fn func()) {
	go func() {
		defer Recover(name, logger)
		fn()
	}()
}
