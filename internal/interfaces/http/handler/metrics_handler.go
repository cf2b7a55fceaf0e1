package handler

import (
	"net/http"

	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"
)

// MetricsHandler отдает сводку агрегатора метрик запросов
type MetricsHandler struct {
	aggregator *service.MetricAggregator
	clock      clock.PassiveClock
}

// NewMetricsHandler создает handler
func NewMetricsHandler(aggregator *service.MetricAggregator, clk clock.PassiveClock) *MetricsHandler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MetricsHandler{aggregator: aggregator, clock: clk}
}

// Summary - GET /metrics/summary
func (h *MetricsHandler) Summary(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, dto.NewMetricsSummaryDTO(
		h.aggregator.Summary(),
		h.aggregator.Percentiles(),
		h.clock.Now(),
	))
}
