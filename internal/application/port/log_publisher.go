package port

import "time"

// LogLevel - уровень записи для внешнего хранилища логов
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry - копия записи логгера вместе с полями, добавленными через With
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher получает каждую запись pkg/logger (CloudWatch Logs).
// Publish вызывается на пути логирования: он не блокируется и не пишет в logger,
// а при переполнении отбрасывает запись.
type LogPublisher interface {
	Publish(entry LogEntry)
}
