package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileName   = "prayernote.log"
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Logger starts on stderr at warn level so that messages logged before Init
// are not lost.
var (
	Logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel, Prefix: "prayernote"})
	file   *lumberjack.Logger
)

type Config struct {
	Debug  bool
	LogDir string
	// Stderr mirrors the log file on stderr. Debug implies it.
	Stderr bool
}

// Init sends the log to a rotating file under cfg.LogDir. The file holds
// logfmt lines; debug mode switches to the human readable text format and
// reports callers.
func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return err
	}
	Close()
	file = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, fileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	var w io.Writer = file
	if cfg.Debug || cfg.Stderr {
		w = io.MultiWriter(os.Stderr, file)
	}
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.InfoLevel,
		Formatter:       log.LogfmtFormatter,
		Prefix:          "prayernote",
	}
	if cfg.Debug {
		opts.Level = log.DebugLevel
		opts.Formatter = log.TextFormatter
		opts.ReportCaller = true
		opts.CallerOffset = 1
	}
	Logger = log.NewWithOptions(w, opts)
	return nil
}

// Close flushes and releases the log file, if any.
func Close() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func Debug(msg string, keyvals ...any) { Logger.Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { Logger.Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { Logger.Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { Logger.Error(msg, keyvals...) }
