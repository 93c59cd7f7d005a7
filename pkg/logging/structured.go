// Package logging builds the process logger: a slog half for library code and
// a zap half for subprocess and circuit-breaker events.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/snow-ghost/patrefine/core"
)

// Logger wraps both slog and zap loggers
type Logger struct {
	slog *slog.Logger
	zap  *zap.Logger
}

// Config holds logging configuration
type Config struct {
	Level     string // debug|info|warn|error
	Format    string // "json" or "console"
	Output    string // "stdout" or "stderr"
	AddCaller bool
}

// DefaultConfig logs info and above as JSON to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: "stderr"}
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*Logger, error) {
	if config.Output == "" {
		config.Output = "stderr"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	var w io.Writer
	switch config.Output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("unsupported log output %q", config.Output)
	}
	return newLogger(config, w)
}

func newLogger(config Config, w io.Writer) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: parseSlogLevel(config.Level), AddSource: config.AddCaller}
	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "console":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", config.Format)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), parseZapLevel(config.Level))
	var zapOpts []zap.Option
	if config.AddCaller {
		zapOpts = append(zapOpts, zap.AddCaller())
	}

	return &Logger{
		slog: slog.New(handler),
		zap:  zap.New(core, zapOpts...),
	}, nil
}

// parseSlogLevel parses slog level from string
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseZapLevel parses zap level from string
func parseZapLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(level) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// With adds a key/value pair to both halves.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		slog: l.slog.With(key, value),
		zap:  l.zap.With(zap.Any(key, value)),
	}
}

// ObserveCheck logs a checker invocation; it lets a Logger observe the oracle.
func (l *Logger) ObserveCheck(mode core.EngineMode, d time.Duration, err error) {
	l.LogCheckerRun(mode.String(), d, err)
}

// LogCheckerRun records one model checker subprocess.
func (l *Logger) LogCheckerRun(engine string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("engine", engine),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		l.zap.Warn("checker run failed", append(fields, zap.Error(err))...)
		return
	}
	l.zap.Debug("checker run completed", fields...)
}

// LogLLMRequest records one generator call.
func (l *Logger) LogLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	l.zap.Info("LLM request completed",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("status", status),
		zap.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
	)
}

// Sync flushes the zap half.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// GetSlog returns the slog logger
func (l *Logger) GetSlog() *slog.Logger {
	return l.slog
}

// GetZap returns the zap logger
func (l *Logger) GetZap() *zap.Logger {
	return l.zap
}
