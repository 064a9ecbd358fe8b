package global

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Sub *zap.Logger
}

func (log *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Info(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Error(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Debug(msg, decaps(ctx, fields...)...)
}

func (log *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	log.Sub.Warn(msg, decaps(ctx, fields...)...)
}

func decaps(ctx context.Context, fields ...zap.Field) []zap.Field {
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if origin := Origin(ctx); origin != "" {
		fields = append(fields, zap.String("origin", origin))
	}
	return fields
}

var (
	logger  *Logger
	logOnce sync.Once

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// SetLogLevel changes the level of the logger, even if it has already
// been built.
func SetLogLevel(lvl string) error {
	l, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Log returns the process-wide logger. When the OpenTelemetry SDK has been
// set up before the first call, records are also exported through it.
func Log() *Logger {
	logOnce.Do(func() {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			level,
		)
		if loggerProvider != nil {
			core = zapcore.NewTee(
				core,
				otelzap.NewCore("ctfer.io/chore-server", otelzap.WithLoggerProvider(loggerProvider)),
			)
		}

		logger = &Logger{
			Sub: zap.New(core),
		}
	})
	return logger
}
