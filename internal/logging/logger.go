// Package logging provides leveled logging for reactor-httpd.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps stdlib log with level support and an optional asynchronous
// queue mode: when QueueSize > 0 a single background goroutine drains a
// bounded channel of formatted lines instead of writing them inline on the
// caller's goroutine, in the shape of a producer/consumer deque, except that
// a full queue drops the line instead of blocking the producer.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	mu     sync.Mutex

	lines     chan string
	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv LogLevel) String() string {
	switch lv {
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

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Output io.Writer
	// QueueSize, when non-zero, enables async logging with a buffered
	// channel of this capacity. A full queue drops the line rather than
	// block the producer. Zero means synchronous, direct writes.
	QueueSize int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger. A nil config behaves like DefaultConfig().
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
	}
	if config.QueueSize > 0 {
		l.lines = make(chan string, config.QueueSize)
		l.done = make(chan struct{})
		l.closed = make(chan struct{})
		go l.drain()
	}
	return l
}

func (l *Logger) drain() {
	defer close(l.closed)
	for {
		select {
		case line := <-l.lines:
			l.logger.Print(line)
		case <-l.done:
			for {
				select {
				case line := <-l.lines:
					l.logger.Print(line)
				default:
					return
				}
			}
		}
	}
}

// Close stops the background drain goroutine after flushing queued lines.
// A no-op on a synchronous logger. Safe to call more than once.
func (l *Logger) Close() error {
	if l.done == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		close(l.done)
		<-l.closed
	})
	return nil
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// formatArgs converts key-value pairs to a " key=value key2=value2" suffix.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) write(prefix, line string) {
	if l.lines != nil {
		select {
		case l.lines <- prefix + " " + line:
		default:
			// Queue full: drop rather than block the caller.
		}
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("%s %s", prefix, line)
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.write(prefix, msg+formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, "[DEBUG]", msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, "[INFO]", msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, "[WARN]", msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, "[ERROR]", msg, args...) }

// Debugf/Infof/Warnf/Errorf satisfy interfaces.Logger for components that
// only know a printf-style sink (the reactor).
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf logs at info level, for callers that only know a bare Printf sink.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
