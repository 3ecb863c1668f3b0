package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger set by Init
var Logger *zap.Logger

// Init builds Logger for an ENVIRONMENT value. Production logs JSON at info,
// the CI/CD pipeline logs plain console output at info and everything else
// logs colored console output at debug. LOG_LEVEL overrides the level.
func Init(env string) error {
	var config zap.Config

	switch {
	case strings.EqualFold(env, "production"):
		config = zap.NewProductionConfig()
	case strings.EqualFold(env, "ci/cd pipeline"):
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := zapcore.ParseLevel(raw)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build()
	if err != nil {
		return err
	}
	if app := os.Getenv("APPLICATION_NAME"); app != "" {
		built = built.With(zap.String("application", app))
	}

	Logger = built
	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Get returns Logger, or a development logger before Init has run
func Get() *zap.Logger {
	if Logger == nil {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	return Logger
}

// Named returns the logger for one vendor client, e.g. "wise" or "discord"
func Named(component string) *zap.Logger {
	return Get().Named(component)
}
