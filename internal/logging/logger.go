// Package logging is the library's own operational logger: init,
// reconnect, ring growth, control-frame parse errors. It never touches
// the user's MCT message stream, which goes through the wire codec and
// transport instead.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// LogLevel mirrors the MCT protocol's own severity scale (spec
// LogLevelFatal..LogLevelVerbose) rather than a generic four-level
// scheme, so an operator reading MCT_LOG_LEVEL already knows the
// numbering: lower is more severe, and a Logger's threshold names the
// least severe level it still emits. LevelOff silences everything.
type LogLevel int8

const (
	LevelOff     LogLevel = LogLevel(wire.LogLevelOff)
	LevelFatal   LogLevel = LogLevel(wire.LogLevelFatal)
	LevelError   LogLevel = LogLevel(wire.LogLevelError)
	LevelWarn    LogLevel = LogLevel(wire.LogLevelWarn)
	LevelInfo    LogLevel = LogLevel(wire.LogLevelInfo)
	LevelDebug   LogLevel = LogLevel(wire.LogLevelDebug)
	LevelVerbose LogLevel = LogLevel(wire.LogLevelVerbose)
)

func (l LogLevel) tag() string {
	switch l {
	case LevelFatal:
		return "FATAL"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelVerbose:
		return "VERBOSE"
	default:
		return "OFF"
	}
}

// Category tags which subsystem emitted a line (transport reconnects,
// ring growth/reset, registry, housekeeper resync), so an operator can
// grep the library's own log independently of its severity.
type Category string

const (
	CategoryTransport   Category = "transport"
	CategoryRing        Category = "ring"
	CategoryRegistry    Category = "registry"
	CategoryHousekeeper Category = "housekeeper"
	CategoryGeneral     Category = "general"
)

// Logger wraps stdlib log with MCT's own severity scale and an optional
// per-line subsystem category.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	mu     sync.Mutex
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns the configuration a Logger gets when neither an
// explicit Config nor the environment says otherwise: LevelInfo (fatal
// through info) to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
	}
}

// NewFromEnv builds a Logger from MCT_LOG_MODE, MCT_LOG_LEVEL, and
// MCT_LOG_FILENAME (spec §6). MCT_LOG_MODE selects the destination: "0"
// discards, "2" opens MCT_LOG_FILENAME for append, anything else (the
// default) writes to stderr. MCT_LOG_LEVEL is a small integer on the
// same LevelFatal..LevelVerbose scale the rest of the library uses,
// clamped to that range.
func NewFromEnv() *Logger {
	cfg := DefaultConfig()

	if lvl, err := strconv.Atoi(os.Getenv("MCT_LOG_LEVEL")); err == nil {
		cfg.Level = clampLevel(lvl)
	}

	switch os.Getenv("MCT_LOG_MODE") {
	case "0":
		cfg.Output = io.Discard
	case "2":
		if path := os.Getenv("MCT_LOG_FILENAME"); path != "" {
			if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				cfg.Output = f
			}
		}
	}

	return NewLogger(cfg)
}

// clampLevel folds an arbitrary integer onto the LevelFatal..LevelVerbose
// range, the same clamping discipline the wire codec applies to an
// out-of-range log level arriving over the control channel.
func clampLevel(lvl int) LogLevel {
	switch {
	case lvl <= int(LevelFatal):
		return LevelFatal
	case lvl >= int(LevelVerbose):
		return LevelVerbose
	default:
		return LogLevel(lvl)
	}
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

// formatArgs converts key-value pairs to a string.
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

// log emits msg if level is at least as severe as the logger's
// threshold (level's numeric value no greater than l.level, since
// LevelFatal < LevelVerbose on this scale).
func (l *Logger) log(level LogLevel, cat Category, msg string, args ...any) {
	if l.level == LevelOff || level > l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cat == "" {
		cat = CategoryGeneral
	}
	l.logger.Printf("[%s] (%s) %s%s", level.tag(), cat, msg, formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, CategoryGeneral, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, CategoryGeneral, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, CategoryGeneral, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, CategoryGeneral, msg, args...) }

// Cat returns a view of this Logger that tags every line with cat,
// letting a subsystem (transport, ring, registry, housekeeper) log
// without repeating its own name in every message.
func (l *Logger) Cat(cat Category) *CategoryLogger {
	return &CategoryLogger{logger: l, cat: cat}
}

// CategoryLogger is a Logger bound to one subsystem category.
type CategoryLogger struct {
	logger *Logger
	cat    Category
}

func (c *CategoryLogger) Debug(msg string, args ...any) { c.logger.log(LevelDebug, c.cat, msg, args...) }
func (c *CategoryLogger) Info(msg string, args ...any)  { c.logger.log(LevelInfo, c.cat, msg, args...) }
func (c *CategoryLogger) Warn(msg string, args ...any)  { c.logger.log(LevelWarn, c.cat, msg, args...) }
func (c *CategoryLogger) Error(msg string, args ...any) { c.logger.log(LevelError, c.cat, msg, args...) }

func (c *CategoryLogger) Debugf(format string, args ...any) {
	c.logger.log(LevelDebug, c.cat, fmt.Sprintf(format, args...))
}
func (c *CategoryLogger) Infof(format string, args ...any) {
	c.logger.log(LevelInfo, c.cat, fmt.Sprintf(format, args...))
}
func (c *CategoryLogger) Warnf(format string, args ...any) {
	c.logger.log(LevelWarn, c.cat, fmt.Sprintf(format, args...))
}
func (c *CategoryLogger) Errorf(format string, args ...any) {
	c.logger.log(LevelError, c.cat, fmt.Sprintf(format, args...))
}

// Printf-style logging.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, CategoryGeneral, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, CategoryGeneral, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, CategoryGeneral, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, CategoryGeneral, fmt.Sprintf(format, args...))
}

// Printf exists for callers that want the stdlib log.Logger-style name;
// it logs at LevelInfo.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions, routed through the process-wide default
// Logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
