package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
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
)

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

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

type Logger struct {
	mu       sync.RWMutex
	level    Level
	levelSet bool
	prefix   string
	logger   *log.Logger
	parent   *Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func Init(level Level) {
	once.Do(func() {
		defaultLogger = &Logger{
			level:    level,
			levelSet: true,
			logger:   log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		}
	})
}

func GetLogger() *Logger {
	Init(LevelInfo)
	return defaultLogger
}

// NewLogger returns a component logger that tags every line with [name].
// Until SetLevel or SetOutput is called on it, it follows the default
// logger's level and output.
func NewLogger(name string) *Logger {
	return &Logger{
		prefix: "[" + name + "] ",
		parent: GetLogger(),
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.levelSet = true
}

func (l *Logger) Level() Level {
	l.mu.RLock()
	level, set, parent := l.level, l.levelSet, l.parent
	l.mu.RUnlock()
	if !set && parent != nil {
		return parent.Level()
	}
	return level
}

// SetOutput redirects the logger. Used by commands for --quiet and by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger == nil {
		l.logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds)
		return
	}
	l.logger.SetOutput(w)
}

func (l *Logger) output() *log.Logger {
	l.mu.RLock()
	out, parent := l.logger, l.parent
	l.mu.RUnlock()
	if out == nil && parent != nil {
		return parent.output()
	}
	return out
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if level < l.Level() {
		return
	}

	line := "[" + level.String() + "] " + l.prefix + msg
	if fieldStr := formatFields(fields); fieldStr != "" {
		line += " " + fieldStr
	}
	l.output().Print(line)
}

type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for Field{Key: key, Value: value}.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

func formatFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(FormatValue(f.Value))
	}
	return b.String()
}

func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(val, " \t\"") {
			return strconv.Quote(val)
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', 3, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', 3, 64)
	case *float64:
		if val == nil {
			return "-"
		}
		return strconv.FormatFloat(*val, 'f', 3, 64)
	case *int64:
		if val == nil {
			return "-"
		}
		return strconv.FormatInt(*val, 10)
	case time.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func Debug(msg string, fields ...Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...Field) { GetLogger().Error(msg, fields...) }
