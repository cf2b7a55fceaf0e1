package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// AlertKey - идентичность алерта для подавления повторов: пара (type, severity)
type AlertKey struct {
	Type     valueobject.AlertType
	Severity valueobject.Severity
}

func (k AlertKey) String() string {
	return k.Type.String() + ":" + k.Severity.String()
}

// Alert представляет сработавший алерт (Aggregate Root).
// После создания изменяется только через Resolve.
type Alert struct {
	id         string
	alertType  valueobject.AlertType
	severity   valueobject.Severity
	message    string
	details    map[string]interface{}
	createdAt  time.Time
	resolved   bool
	resolvedAt *time.Time
}

// NewAlert создает алерт (Factory Method).
// Сообщение берется из details["message"], иначе собирается из остальных деталей.
func NewAlert(
	alertType valueobject.AlertType,
	severity valueobject.Severity,
	details map[string]interface{},
	now time.Time,
) (*Alert, error) {
	if err := alertType.Validate(); err != nil {
		return nil, err
	}
	if err := severity.Validate(); err != nil {
		return nil, err
	}

	copied := make(map[string]interface{}, len(details))
	for k, v := range details {
		copied[k] = v
	}

	return &Alert{
		id:        uuid.New().String(),
		alertType: alertType,
		severity:  severity,
		message:   buildMessage(alertType, severity, copied),
		details:   copied,
		createdAt: now,
	}, nil
}

func buildMessage(t valueobject.AlertType, s valueobject.Severity, details map[string]interface{}) string {
	prefix := fmt.Sprintf("[%s] %s alert", strings.ToUpper(s.String()), t.String())

	if msg, ok := details["message"].(string); ok && msg != "" {
		return prefix + ": " + msg
	}
	if len(details) == 0 {
		return prefix
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return prefix + ": " + strings.Join(parts, ", ")
}

// ErrAlreadyResolved возвращается при повторном разрешении алерта
var ErrAlreadyResolved = errors.New("alert already resolved")

// Resolve помечает алерт как разрешенный. Переход терминальный.
func (a *Alert) Resolve(now time.Time) error {
	if a.resolved {
		return ErrAlreadyResolved
	}
	a.resolved = true
	a.resolvedAt = &now
	return nil
}

// Clone возвращает независимую копию для передачи за пределы владельца
func (a *Alert) Clone() *Alert {
	c := *a
	c.details = make(map[string]interface{}, len(a.details))
	for k, v := range a.details {
		c.details[k] = v
	}
	if a.resolvedAt != nil {
		t := *a.resolvedAt
		c.resolvedAt = &t
	}
	return &c
}

func (a *Alert) ID() string { return a.id }
func (a *Alert) Type() valueobject.AlertType { return a.alertType }
func (a *Alert) Severity() valueobject.Severity { return a.severity }
func (a *Alert) Message() string { return a.message }
func (a *Alert) Details() map[string]interface{} { return a.details }
func (a *Alert) CreatedAt() time.Time { return a.createdAt }
func (a *Alert) IsResolved() bool { return a.resolved }
func (a *Alert) ResolvedAt() *time.Time { return a.resolvedAt }
func (a *Alert) Key() AlertKey { return AlertKey{Type: a.alertType, Severity: a.severity} }
