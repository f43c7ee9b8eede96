package log

import (
	"fmt"
	"io"
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
	LevelOff
)

var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelOff {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// sink is shared by every Logger so SetLevel/SetOutput apply globally.
type sink struct {
	mu     sync.Mutex
	level  Level
	output io.Writer
}

var std = &sink{level: LevelInfo, output: os.Stderr}

// Logger writes lines tagged with a component name.
type Logger struct {
	component string
	sink      *sink
}

var defaultLogger = &Logger{sink: std}

// With returns a logger whose lines are tagged with component.
func With(component string) *Logger {
	return &Logger{component: component, sink: std}
}

func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.output = w
}

// Enabled reports whether lines at lvl are currently written.
func Enabled(lvl Level) bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return lvl >= std.level
}

func Debug(format string, args ...interface{}) { defaultLogger.log(LevelDebug, format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.log(LevelInfo, format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.log(LevelWarn, format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.log(LevelError, format, args...) }

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

func (l *Logger) log(lvl Level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if lvl < l.sink.level || lvl >= LevelOff {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	if l.component != "" {
		fmt.Fprintf(l.sink.output, "[%s] [%s] [%s] %s\n", timestamp, levelNames[lvl], l.component, msg)
		return
	}
	fmt.Fprintf(l.sink.output, "[%s] [%s] %s\n", timestamp, levelNames[lvl], msg)
}
