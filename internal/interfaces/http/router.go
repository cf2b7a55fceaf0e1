package http

import (
	"net/http"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/handler"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"
	"github.com/dreschagin/crm-monitoring/pkg/config"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// Router настраивает маршруты приложения
type Router struct {
	mux              *http.ServeMux
	healthHandler    *handler.HealthHandler
	alertsHandler    *handler.AlertsHandler
	metricsHandler   *handler.MetricsHandler
	websocketHandler *handler.WebSocketHandler
	exposition       http.Handler
	recorder         middleware.RequestRecorder
	sink             port.MetricsSink
	security         config.SecurityConfig
	logger           *logger.Logger
}

// NewRouter создает новый router.
// exposition - обработчик GET /metrics (Prometheus), recorder получает каждый запрос.
func NewRouter(
	healthHandler *handler.HealthHandler,
	alertsHandler *handler.AlertsHandler,
	metricsHandler *handler.MetricsHandler,
	websocketHandler *handler.WebSocketHandler,
	exposition http.Handler,
	recorder middleware.RequestRecorder,
	sink port.MetricsSink,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	if sink == nil {
		sink = port.NopSink{}
	}
	return &Router{
		mux:              http.NewServeMux(),
		healthHandler:    healthHandler,
		alertsHandler:    alertsHandler,
		metricsHandler:   metricsHandler,
		websocketHandler: websocketHandler,
		exposition:       exposition,
		recorder:         recorder,
		sink:             sink,
		security:         security,
		logger:           logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("GET /health", rt.healthHandler.Health)
	rt.mux.HandleFunc("GET /health/ready", rt.healthHandler.Ready)
	rt.mux.HandleFunc("GET /health/live", rt.healthHandler.Live)

	if rt.exposition != nil {
		rt.mux.Handle("GET /metrics", rt.exposition)
	}

	authMiddleware := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, rt.logger)
	resolver, err := middleware.NewClientIPResolver(rt.security.TrustedProxies)
	if err != nil {
		rt.logger.Error("Invalid trusted proxies, forwarding headers ignored", err)
	}
	rateLimit := middleware.RateLimit(
		middleware.NewIPRateLimiter(rt.security.RateLimitRPS, rt.security.RateLimitBurst),
		resolver,
		rt.sink,
	)

	read := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(middleware.Compression(h))
	}
	write := func(h http.HandlerFunc) http.Handler {
		return rateLimit(authMiddleware(h))
	}

	rt.mux.Handle("GET /metrics/summary", read(rt.metricsHandler.Summary))

	rt.mux.Handle("GET /alerts/active", read(rt.alertsHandler.Active))
	rt.mux.Handle("GET /alerts/history", read(rt.alertsHandler.History))
	rt.mux.Handle("GET /alerts/stats", read(rt.alertsHandler.Stats))
	rt.mux.Handle("POST /alerts", write(rt.alertsHandler.Trigger))
	rt.mux.Handle("POST /alerts/{id}/resolve", write(rt.alertsHandler.Resolve))

	// WebSocket сам проверяет токен: браузер передает его в query
	if rt.websocketHandler != nil {
		rt.mux.HandleFunc("GET /ws/alerts", rt.websocketHandler.HandleConnection)
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Recovery(rt.logger)(handler)
	if rt.recorder != nil {
		handler = middleware.RequestMetrics(rt.recorder, rt.sink)(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
