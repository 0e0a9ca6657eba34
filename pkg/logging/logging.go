// Package logging builds the zap-backed ectologger used by every fern command.
package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Config struct {
	Level   string
	Pretty  bool
	AppName string
}

// New returns the ectologger and the zap logger behind it. Callers should Sync the zap
// logger before exiting.
func New(config Config) (ectologger.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	if config.Pretty {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	if config.AppName != "" {
		zapLogger = zapLogger.With(zap.String("app", config.AppName))
	}

	return zapadapter.NewZapEctoLogger(zapLogger, WithContextFields), zapLogger, nil
}

// WithContextFields copies request, run and trace identifiers from the message context into
// its fields.
func WithContextFields(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}
	if msg.Fields == nil {
		msg.Fields = map[string]any{}
	}
	for k, v := range fernctx.Fields(msg.Ctx) {
		if _, exists := msg.Fields[k]; !exists {
			msg.Fields[k] = v
		}
	}
	if traceID := tracing.GetTraceID(msg.Ctx); traceID != "" {
		msg.Fields["trace_id"] = traceID
	}
	return msg
}

// Silent discards everything.
func Silent() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
