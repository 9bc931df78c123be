package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appName = "portfolio-sim"

// NewLogger creates a new zap.Logger instance based on the provided configuration.
// Format "json" selects the production encoder; anything else gets the console one.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{"app": appName}

	return cfg.Build()
}

// NewCLILogger builds the stderr logger for command line tools. It never logs
// below warn, and drops timestamps, callers and stack traces so that retries
// and failures read as plain messages next to the command output.
func NewCLILogger(level string) (*zap.Logger, error) {
	logLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if logLevel < zapcore.WarnLevel {
		logLevel = zapcore.WarnLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = ""
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

// parseLevel treats an empty level as info.
func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(level)
}
