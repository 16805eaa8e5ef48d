package safego

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// Execute runs fn in a new goroutine.
// Panics are recovered and logged under the goroutine name together with a stack trace.
func Execute(ctx context.Context, logger *zap.Logger, goroutineName string, fn func(ctx context.Context)) {
	go func() {
		defer Recover(logger, goroutineName)
		fn(ctx)
	}()
}

// Recover is deferred by callers that need a panic boundary without a new goroutine.
func Recover(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Error("panic recovered",
			zap.String("goroutine", name),
			zap.String("panic_info", fmt.Sprintf("%v", r)),
			zap.String("stacktrace", string(debug.Stack())))
	}
}

// Call runs fn synchronously and converts a panic into an error.
func Call(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn()
}
