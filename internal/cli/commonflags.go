package cli

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func addLoggingFlags(flags *flag.FlagSet) {
	format := &logFormatFlag{format: "text", level: new(slog.LevelVar)}
	flags.Var(&logLevelFlag{level: format.level, name: "INFO"}, "log-level", "log level: DEBUG, INFO, WARN or ERROR")
	flags.Var(format, "log-format", "log format: text or json")
}

type logLevelFlag struct {
	level *slog.LevelVar
	name  string
}

func (f *logLevelFlag) Set(s string) error {
	var level slog.Level

	err := level.UnmarshalText([]byte(s))
	if err != nil {
		return fmt.Errorf("unsupported log level %q provided, supported log levels are DEBUG, INFO, WARN, ERROR", s)
	}

	f.level.Set(level)
	f.name = strings.ToUpper(s)
	slog.SetLogLoggerLevel(level)

	return nil
}

func (f *logLevelFlag) String() string {
	if f == nil {
		return ""
	}
	return f.name
}

// logFormatFlag replaces the default logger with a handler writing to stderr.
// The handler shares the level set by the log-level flag.
type logFormatFlag struct {
	format string
	level  *slog.LevelVar
}

func (f *logFormatFlag) Set(s string) error {
	opts := &slog.HandlerOptions{Level: f.level}

	switch strings.ToLower(s) {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		return fmt.Errorf("unsupported log format %q provided, supported formats are text and json", s)
	}

	f.format = strings.ToLower(s)

	return nil
}

func (f *logFormatFlag) String() string {
	if f == nil {
		return ""
	}
	return f.format
}
