// Package logger builds the zap logger shared by every camscout component.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"camscout/internal/config"
)

// Rotation defaults used when the config leaves them unset
const (
	defaultMaxSize    = 100 // MB
	defaultMaxBackups = 5
	defaultMaxAge     = 30 // days
	defaultFilePath   = "logs/camscout.log"
)

// Logger wraps the zap logger together with the rotating file it may own
type Logger struct {
	*zap.Logger
	fileWriter *lumberjack.Logger
}

// New creates a logger from the logging section of the config.
// Output "console" writes colored text to stdout, "file" writes JSON lines
// to a rotated file, "both" tees the two.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleConfig := encoderConfig
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	l := &Logger{}
	var core zapcore.Core

	switch cfg.Output {
	case "file":
		if l.fileWriter, err = fileWriter(cfg); err != nil {
			return nil, err
		}
		core = zapcore.NewCore(fileEncoder, zapcore.AddSync(l.fileWriter), level)
	case "both":
		if l.fileWriter, err = fileWriter(cfg); err != nil {
			return nil, err
		}
		core = zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(fileEncoder, zapcore.AddSync(l.fileWriter), level),
		)
	default:
		core = zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
	}

	l.Logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

// Close flushes buffered entries and releases the log file
func (l *Logger) Close() {
	_ = l.Sync()
	if l.fileWriter != nil {
		_ = l.fileWriter.Close()
	}
}

// fileWriter creates the rotating writer, making sure its directory exists
func fileWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	path := cfg.FilePath
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  true,
		Compress:   true,
	}
	if w.MaxSize == 0 {
		w.MaxSize = defaultMaxSize
	}
	if w.MaxBackups == 0 {
		w.MaxBackups = defaultMaxBackups
	}
	if w.MaxAge == 0 {
		w.MaxAge = defaultMaxAge
	}
	return w, nil
}
