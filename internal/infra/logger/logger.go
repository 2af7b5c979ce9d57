package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

type Logger struct {
	mu            sync.Mutex
	fileLogger    *log.Logger
	stdout        io.Writer
	level         Level
	includeStdout bool
	closer        io.Closer
}

func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := NewWithWriters(f, os.Stdout, level, includeStdout)
	l.closer = f
	return l, nil
}

// NewWithWriters builds a logger on arbitrary sinks. A nil stdout disables mirroring.
func NewWithWriters(file, stdout io.Writer, level Level, includeStdout bool) *Logger {
	if file == nil {
		file = io.Discard
	}
	return &Logger{
		fileLogger:    log.New(file, "", 0),
		stdout:        stdout,
		level:         level,
		includeStdout: includeStdout && stdout != nil,
	}
}

// Discard returns a logger that drops everything, handy in tests.
func Discard() *Logger {
	return NewWithWriters(io.Discard, nil, LevelFatal, false)
}

// SetStdout toggles mirroring to stdout, e.g. for quiet mode.
func (l *Logger) SetStdout(enabled bool) {
	l.mu.Lock()
	l.includeStdout = enabled && l.stdout != nil
	l.mu.Unlock()
}

func (l *Logger) log(lvl Level, prefix string, format string, v ...interface{}) {
	if lvl < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	fullMsg := fmt.Sprintf("%s [%s] %s", timestamp, prefix, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.fileLogger.Println(fullMsg)

	// Write to Stdout for Docker/CLI if enabled AND level is Info or higher
	// This prevents Debug spam from breaking progress bar and other CLI UI elements
	if l.includeStdout && lvl >= LevelInfo {
		fmt.Fprintf(l.stdout, "\n%s", fullMsg)
	}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, "DEBUG", f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, "INFO", f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, "WARN", f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, "ERROR", f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.log(LevelFatal, "FATAL", f, v...); os.Exit(1) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
