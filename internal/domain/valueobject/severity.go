package valueobject

import "fmt"

// Severity - уровень важности алерта
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Validate проверяет валидность уровня
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid severity %q", string(s))
	}
}

func (s Severity) String() string {
	return string(s)
}

// AllSeverities возвращает уровни от младшего к старшему
func AllSeverities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityCritical}
}
