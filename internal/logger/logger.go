// Package logger is the process-wide levelled logger.
//
// Lines are written either in the classic text layout
//
//	[2006-01-02 15:04:05] [INFO] message
//
// or as one JSON object per line when the format is "json". Level, format
// and destination may be changed at any time and are safe to change while
// other goroutines are logging.
package logger

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel atomic.Int32

	mu         sync.RWMutex
	textLogger = stdlog.New(os.Stdout, "", 0)
	jsonLogger *slog.Logger
	output     io.Writer = os.Stdout
	closer     io.Closer
)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
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

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	}
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetFormat selects "text" or "json" output. Unknown names fall back to text.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()

	if strings.ToLower(format) == "json" {
		jsonLogger = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelDebug}))
		return
	}
	jsonLogger = nil
}

// SetOutput directs log lines to "stdout", "stderr" or a file path, which is
// created or appended to.
func SetOutput(dest string) error {
	var (
		w io.Writer
		c io.Closer
	)

	switch strings.ToLower(dest) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", dest, err)
		}
		w, c = f, f
	}

	setWriter(w, c)
	return nil
}

// SetWriter directs log lines to w. Mostly useful in tests.
func SetWriter(w io.Writer) {
	setWriter(w, nil)
}

func setWriter(w io.Writer, c io.Closer) {
	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		_ = closer.Close()
	}
	output, closer = w, c
	textLogger = stdlog.New(w, "", 0)
	if jsonLogger != nil {
		jsonLogger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func log(level Level, format string, v ...any) {
	if level < GetLevel() {
		return
	}

	message := fmt.Sprintf(format, v...)

	mu.RLock()
	defer mu.RUnlock()

	if jsonLogger != nil {
		jsonLogger.Log(context.Background(), level.slogLevel(), message)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	prefix := fmt.Sprintf("[%s] [%s] ", timestamp, level.String())
	textLogger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
