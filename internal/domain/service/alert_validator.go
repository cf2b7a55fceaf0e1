package service

import (
	"errors"
	"fmt"

	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

// ErrInvalidAlert оборачивает все ошибки валидации алерта
var ErrInvalidAlert = errors.New("invalid alert")

// ValidateAlertRequest проверяет параметры алерта до его создания
func ValidateAlertRequest(alertType valueobject.AlertType, severity valueobject.Severity, details map[string]interface{}) error {
	if err := alertType.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}
	if err := severity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}

	// message, если передан, должен быть строкой
	if msg, ok := details["message"]; ok {
		if _, isString := msg.(string); !isString {
			return fmt.Errorf("%w: message must be a string", ErrInvalidAlert)
		}
	}

	return nil
}
