package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init builds the global logger. Production gets JSON on stdout with a
// service field; anything else gets the colored development console.
func Init(env string) {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.InitialFields = map[string]interface{}{"service": "assembliestore"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	log = built
}

// L returns the global logger, initializing it lazily from APP_ENV for
// code paths that run before main wires it up.
func L() *zap.Logger {
	if log == nil {
		Init(os.Getenv("APP_ENV"))
	}
	return log
}

// Sync flushes buffered entries. Safe to call before Init.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
