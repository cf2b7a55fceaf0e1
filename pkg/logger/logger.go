package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

type Logger struct {
	zl    zerolog.Logger
	level zerolog.Level

	// fields добавленные через With, дублируются во внешний publisher
	fields map[string]interface{}

	pub *publisherRef
}

type publisherRef struct {
	mu        sync.RWMutex
	publisher port.LogPublisher
}

// New создает JSON logger в stdout
func New(level string) *Logger {
	return NewWithWriter(os.Stdout, level, "json")
}

// NewWithWriter создает logger с произвольным writer и форматом ("json" или "console")
func NewWithWriter(w io.Writer, level, format string) *Logger {
	lvl := parseLevel(level)

	if format == "console" || format == "pretty" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}

	zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	return &Logger{
		zl:     zl,
		level:  lvl,
		fields: map[string]interface{}{},
		pub:    &publisherRef{},
	}
}

// Nop возвращает logger, который ничего не пишет
func Nop() *Logger {
	return &Logger{
		zl:     zerolog.Nop(),
		level:  zerolog.Disabled,
		fields: map[string]interface{}{},
		pub:    &publisherRef{},
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogPublisher подключает внешний publisher (например CloudWatch Logs).
// Publisher общий для всех производных logger'ов, созданных через With.
func (l *Logger) SetLogPublisher(p port.LogPublisher) {
	l.pub.mu.Lock()
	l.pub.publisher = p
	l.pub.mu.Unlock()
}

// With возвращает дочерний logger с постоянными полями
func (l *Logger) With(args ...interface{}) *Logger {
	extra := toFields(args)
	merged := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}

	return &Logger{
		zl:     l.zl.With().Fields(extra).Logger(),
		level:  l.level,
		fields: merged,
		pub:    l.pub,
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(zerolog.DebugLevel, msg, nil, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(zerolog.InfoLevel, msg, nil, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(zerolog.WarnLevel, msg, nil, args...)
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	l.log(zerolog.ErrorLevel, msg, err, args...)
}

func (l *Logger) log(level zerolog.Level, msg string, err error, args ...interface{}) {
	if level < l.level {
		return
	}

	fields := toFields(args)

	event := l.zl.WithLevel(level).Fields(fields)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)

	l.publish(level, msg, err, fields)
}

func (l *Logger) publish(level zerolog.Level, msg string, err error, fields map[string]interface{}) {
	l.pub.mu.RLock()
	publisher := l.pub.publisher
	l.pub.mu.RUnlock()
	if publisher == nil {
		return
	}

	all := make(map[string]interface{}, len(l.fields)+len(fields)+1)
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	if err != nil {
		all["error"] = err.Error()
	}

	publisher.Publish(port.LogEntry{
		Timestamp: time.Now(),
		Level:     toPortLevel(level),
		Message:   msg,
		Fields:    all,
	})
}

func toPortLevel(level zerolog.Level) port.LogLevel {
	switch level {
	case zerolog.DebugLevel:
		return port.LogLevelDebug
	case zerolog.WarnLevel:
		return port.LogLevelWarn
	case zerolog.ErrorLevel:
		return port.LogLevelError
	default:
		return port.LogLevelInfo
	}
}

// toFields превращает пары key/value в map. Ключи не-строки приводятся через fmt.
func toFields(args []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
