package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps LOG_LEVEL values to zap levels; anything unknown is info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func NewLogger(logDir, level string) (*zap.Logger, error) {
	return newLogger(logDir, level, nil)
}

// NewTeeLogger writes to the rotated file and copies warnings and above to w.
// The CLI uses it with os.Stderr.
func NewTeeLogger(logDir, level string, w io.Writer) (*zap.Logger, error) {
	return newLogger(logDir, level, w)
}

func newLogger(logDir, level string, tee io.Writer) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "channelcheck.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, ParseLevel(level))
	if tee != nil {
		console := zap.NewDevelopmentEncoderConfig()
		console.TimeKey = ""
		core = zapcore.NewTee(core, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.AddSync(tee), zap.WarnLevel))
	}
	return zap.New(core), nil
}
