package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.Logger

// Init builds the process-wide logger. Production emits JSON to stdout for
// the log shipper; anything else gets a colored console for local work.
func Init(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	base = built
}

// L returns the process logger, initializing lazily so tests and tools that
// never call Init still log.
func L() *zap.Logger {
	if base == nil {
		Init(os.Getenv("APP_ENV"))
	}
	return base
}

func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
