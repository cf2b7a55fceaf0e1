package valueobject

import "net/http"

// CheckStatus - результат одной health-проверки
type CheckStatus string

const (
	CheckHealthy   CheckStatus = "healthy"
	CheckWarning   CheckStatus = "warning"
	CheckUnhealthy CheckStatus = "unhealthy"
)

func (s CheckStatus) String() string {
	return string(s)
}

// OverallStatus - сводный статус системы
type OverallStatus string

const (
	StatusHealthy   OverallStatus = "healthy"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnhealthy OverallStatus = "unhealthy"
)

func (s OverallStatus) String() string {
	return string(s)
}

// HTTPStatus: healthy и degraded отдаются как 200, unhealthy как 503
func (s OverallStatus) HTTPStatus() int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
