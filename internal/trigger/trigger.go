// Package trigger re-runs a sync on a cron schedule or when watched input files change.
package trigger

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
)

// RunFunc is one sync pass. A returned error is logged and the trigger keeps going.
type RunFunc func(ctx context.Context) error

// cronLogger adapts ectologger to cron.Logger.
type cronLogger struct {
	logger ectologger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.WithError(err).WithFields(pairs(keysAndValues)).Error(msg)
}

func pairs(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
