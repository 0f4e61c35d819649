package log

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"

	"go.uber.org/zap"
)

// Config declares a logger.
type Config struct {
	// Level is one of debug|info|warn|error|fatal.
	Level string `json:"level" yaml:"level"`
	// Format is json or text.
	Format string `json:"format" yaml:"format"`
	// Output overrides stderr when non-nil.
	Output io.Writer `json:"-" yaml:"-"`
}

// ParseLevel parses a case-insensitive level name. An empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		return NewLogger(), nil
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(cfg.Format)
	switch format {
	case "", "json":
		format = "json"
	case "text", "console":
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	return NewLogger(WithLevel(lvl), WithFormat(format), WithWriter(cfg.Output)), nil
}

// RedirectStdLog routes the standard library logger through l at info level
// and returns a function restoring the previous behavior.
func RedirectStdLog(l Logger) func() {
	return zap.RedirectStdLog(l.Zap())
}

// ToStdLogger adapts l for libraries that require a *log.Logger.
func ToStdLogger(l Logger) *stdlog.Logger {
	return zap.NewStdLog(l.Zap())
}
