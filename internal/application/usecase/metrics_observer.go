package usecase

import (
	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// MetricsObserver превращает события агрегатора в warning-логи и счетчики sink'а
type MetricsObserver struct {
	sink   port.MetricsSink
	logger *logger.Logger
}

// NewMetricsObserver создает observer для service.MetricAggregator
func NewMetricsObserver(sink port.MetricsSink, log *logger.Logger) *MetricsObserver {
	if sink == nil {
		sink = port.NopSink{}
	}
	return &MetricsObserver{sink: sink, logger: log}
}

// SlowRequest реализует service.SlowEventObserver
func (o *MetricsObserver) SlowRequest(key valueobject.EndpointKey, durationMs float64, statusCode int) {
	o.logger.Warn("Slow request detected",
		"method", key.Method,
		"route", key.Route,
		"duration_ms", durationMs,
		"status", statusCode,
	)
	o.sink.IncCounter("slow_requests_total", port.Labels{"method": key.Method, "route": key.Route})
}

// SlowOperation реализует service.SlowEventObserver
func (o *MetricsObserver) SlowOperation(op entity.SlowOperation) {
	o.logger.Warn("Slow operation detected",
		"operation", op.Description,
		"duration_ms", op.DurationMs,
	)
	o.sink.IncCounter("slow_operations_total", nil)
}
