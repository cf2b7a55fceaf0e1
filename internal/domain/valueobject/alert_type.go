package valueobject

import "fmt"

// AlertType представляет класс алерта (Value Object)
type AlertType string

const (
	AlertErrorRate    AlertType = "error_rate"
	AlertResponseTime AlertType = "response_time"
	AlertDatabase     AlertType = "database"
	AlertMemory       AlertType = "memory"
	AlertCPU          AlertType = "cpu"
	AlertDisk         AlertType = "disk"
	AlertSecurity     AlertType = "security"
	AlertBusiness     AlertType = "business"
)

// Validate проверяет валидность типа алерта
func (t AlertType) Validate() error {
	switch t {
	case AlertErrorRate, AlertResponseTime, AlertDatabase, AlertMemory,
		AlertCPU, AlertDisk, AlertSecurity, AlertBusiness:
		return nil
	default:
		return fmt.Errorf("invalid alert type %q", string(t))
	}
}

// String возвращает строковое представление типа алерта
func (t AlertType) String() string {
	return string(t)
}

// AllAlertTypes возвращает список всех допустимых типов алертов
func AllAlertTypes() []AlertType {
	return []AlertType{
		AlertErrorRate, AlertResponseTime, AlertDatabase, AlertMemory,
		AlertCPU, AlertDisk, AlertSecurity, AlertBusiness,
	}
}
