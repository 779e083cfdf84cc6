// Package logging builds the slog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	OutputStderr = "stderr"
	OutputFile   = "file"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config selects the format, level and destination of log records.
type Config struct {
	Level  string `yaml:"level" env:"GH_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"GH_LOG_FORMAT" env-default:"text"`
	Output string `yaml:"output" env:"GH_LOG_OUTPUT" env-default:"stderr"`

	// File rotation, used when Output is "file".
	FilePath   string `yaml:"file_path" env:"GH_LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"GH_LOG_MAX_SIZE" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"GH_LOG_MAX_BACKUPS" env-default:"3"`
	MaxAge     int    `yaml:"max_age" env:"GH_LOG_MAX_AGE" env-default:"7"`
	Compress   bool   `yaml:"compress" env:"GH_LOG_COMPRESS"`
}

// NewLogger creates a logger writing to stderr or, with Output "file", to a
// rotated file. An unknown output or an unusable file path falls back to stderr.
func NewLogger(cfg Config) *slog.Logger {
	var w io.Writer
	switch cfg.Output {
	case OutputFile:
		w = fileWriter(cfg)
	case OutputStderr, "":
		w = os.Stderr
	default:
		fmt.Fprintf(os.Stderr, "WARNING: unknown logging output %q, falling back to stderr\n", cfg.Output)
		w = os.Stderr
	}
	return NewLoggerWithWriter(cfg, w)
}

func fileWriter(cfg Config) io.Writer {
	if cfg.FilePath == "" {
		fmt.Fprintln(os.Stderr, "WARNING: logging output is file but file_path is empty, falling back to stderr")
		return os.Stderr
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: failed to create log directory %q: %v, falling back to stderr\n", dir, err)
			return os.Stderr
		}
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
