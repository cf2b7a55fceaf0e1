package entity

import "time"

// SlowOperation - запись о медленной операции с уже очищенным описанием
type SlowOperation struct {
	Description string
	DurationMs  float64
	Timestamp   time.Time
	Metadata    map[string]interface{}
}
