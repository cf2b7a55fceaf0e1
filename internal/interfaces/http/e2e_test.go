package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/application/usecase"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	wsInfra "github.com/dreschagin/crm-monitoring/internal/infrastructure/notification/websocket"
	promsink "github.com/dreschagin/crm-monitoring/internal/infrastructure/observability/prometheus"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/handler"
	"github.com/dreschagin/crm-monitoring/internal/interfaces/http/middleware"
	"github.com/dreschagin/crm-monitoring/pkg/config"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

const testToken = "test-token"

type stubDatabase struct {
	mu     sync.Mutex
	health port.DatabaseHealth
}

func (s *stubDatabase) Health(context.Context) (port.DatabaseHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health, nil
}

func (s *stubDatabase) set(h port.DatabaseHealth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = h
}

type testServer struct {
	*httptest.Server
	database   *stubDatabase
	aggregator *service.MetricAggregator
	engine     *usecase.AlertEngine
	hub        *wsInfra.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.Nop()
	sink := promsink.NewSink("crm")

	aggregator := service.NewMetricAggregator(service.DefaultAggregatorConfig(), nil, usecase.NewMetricsObserver(sink, log))
	database := &stubDatabase{health: port.DatabaseHealth{
		Connected:    true,
		ResponseTime: 2 * time.Millisecond,
		PoolStats:    port.PoolStats{Total: 4, Used: 1, Free: 3, Max: 20},
	}}

	orchestrator := usecase.NewHealthOrchestrator(usecase.HealthOrchestratorConfig{Timeout: time.Second, HistorySize: 10}, nil, sink, log)
	orchestrator.Register(usecase.CheckDatabase, usecase.DatabaseProbe(database, 80, time.Second))
	orchestrator.Register(usecase.CheckMetrics, usecase.MetricsProbe(aggregator, 5, 1000))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := wsInfra.NewHub(log)
	go hub.Run(ctx)

	dispatcher := usecase.NewNotificationDispatcher([]port.Notifier{hub}, time.Second, sink, log)
	engine := usecase.NewAlertEngine(usecase.AlertEngineConfig{
		ErrorRate:         valueobject.ThresholdPair{Warning: 5, Critical: 10},
		ResponseTime:      valueobject.ThresholdPair{Warning: 1000, Critical: 3000},
		DatabasePool:      valueobject.ThresholdPair{Warning: 80, Critical: 95},
		Memory:            valueobject.ThresholdPair{Warning: 80, Critical: 90},
		CPU:               valueobject.ThresholdPair{Warning: 80, Critical: 95},
		SuppressionWindow: 5 * time.Minute,
	}, nil, aggregator, database, nil, dispatcher, sink, log)

	security := config.SecurityConfig{
		AllowedOrigins: []string{"http://localhost:8080"},
		AuthEnabled:    true,
		AuthToken:      testToken,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}

	router := NewRouter(
		handler.NewHealthHandler(orchestrator, database, nil, log),
		handler.NewAlertsHandler(engine, log),
		handler.NewMetricsHandler(aggregator, nil),
		handler.NewWebSocketHandler(hub, security.AllowedOrigins, middleware.AuthConfig{Enabled: true, BearerToken: testToken}, log),
		sink.Handler(),
		aggregator,
		sink,
		security,
		log,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	t.Cleanup(dispatcher.Wait)

	return &testServer{Server: server, database: database, aggregator: aggregator, engine: engine, hub: hub}
}

func doRequest(t *testing.T, method, url string, body []byte, authorized bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestE2EHealthEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/health", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[dto.HealthReportDTO](t, resp)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Contains(t, report.Checks, "database")
	assert.Empty(t, report.History)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	resp = doRequest(t, http.MethodGet, server.URL+"/health?history=true", nil, false)
	withHistory := decode[dto.HealthReportDTO](t, resp)
	assert.Len(t, withHistory.History, 2)

	resp = doRequest(t, http.MethodGet, server.URL+"/health?check=database", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[dto.HealthCheckDTO](t, resp)
	assert.Equal(t, "database", check.Name)

	resp = doRequest(t, http.MethodGet, server.URL+"/health?check=nope", nil, false)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errBody := decode[middleware.ErrorResponse](t, resp)
	assert.Contains(t, errBody.Error, "nope")

	resp = doRequest(t, http.MethodGet, server.URL+"/health/live", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	live := decode[dto.LivenessDTO](t, resp)
	assert.Equal(t, "alive", live.Status)
	assert.Positive(t, live.PID)
}

func TestE2EHealthReflectsDatabaseOutage(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/health/ready", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	server.database.set(port.DatabaseHealth{Connected: false, Error: "connection refused"})

	resp = doRequest(t, http.MethodGet, server.URL+"/health/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	ready := decode[dto.ReadinessDTO](t, resp)
	assert.Equal(t, "disconnected", ready.Database)

	// database unhealthy, metrics healthy: failed <= passed, so degraded and still 200
	resp = doRequest(t, http.MethodGet, server.URL+"/health", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[dto.HealthReportDTO](t, resp)
	assert.Equal(t, "degraded", report.Status)

	resp = doRequest(t, http.MethodGet, server.URL+"/health/live", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2EAlertLifecycle(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/alerts/active", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := []byte(`{"type":"security","severity":"critical","message":"brute force on /auth/login","details":{"ip":"203.0.113.7"}}`)
	resp = doRequest(t, http.MethodPost, server.URL+"/alerts", body, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[dto.AlertDTO](t, resp)
	assert.Equal(t, "security", created.Type)
	assert.Equal(t, "critical", created.Severity)
	assert.Contains(t, created.Message, "brute force")

	resp = doRequest(t, http.MethodPost, server.URL+"/alerts", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	suppressed := decode[dto.TriggerAlertResponse](t, resp)
	assert.True(t, suppressed.Suppressed)
	require.NotNil(t, suppressed.Alert)
	assert.Equal(t, created.ID, suppressed.Alert.ID)

	resp = doRequest(t, http.MethodGet, server.URL+"/alerts/active", nil, true)
	active := decode[dto.AlertListDTO](t, resp)
	assert.Equal(t, 1, active.Count)

	resp = doRequest(t, http.MethodGet, server.URL+"/alerts/stats", nil, true)
	stats := decode[dto.AlertStatsDTO](t, resp)
	assert.Equal(t, 1, stats.Last24h.Total)
	assert.Equal(t, 1, stats.Last24h.ByType["security"])
	assert.Equal(t, 1, stats.Active)

	resp = doRequest(t, http.MethodPost, server.URL+"/alerts/"+created.ID+"/resolve", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolved := decode[dto.AlertDTO](t, resp)
	assert.True(t, resolved.Resolved)

	resp = doRequest(t, http.MethodPost, server.URL+"/alerts/"+created.ID+"/resolve", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/alerts/history?limit=10", nil, true)
	history := decode[dto.AlertListDTO](t, resp)
	require.Equal(t, 1, history.Count)
	assert.True(t, history.Alerts[0].Resolved)
}

func TestE2ETriggerValidation(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(t, http.MethodPost, server.URL+"/alerts", []byte(`{"type":"weather","severity":"warning"}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, server.URL+"/alerts", []byte(`{"type":"cpu","severity":"fatal"}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, server.URL+"/alerts", []byte(`not json`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/alerts/history?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestE2EMetricsSummaryAndExposition(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 3; i++ {
		doRequest(t, http.MethodGet, server.URL+"/health/live", nil, false)
	}

	resp := doRequest(t, http.MethodGet, server.URL+"/metrics/summary", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var summary dto.MetricsSummaryDTO
	require.NoError(t, json.Unmarshal(raw, &summary))
	var live *dto.EndpointSummaryDTO
	for i := range summary.Endpoints {
		if summary.Endpoints[i].Endpoint == "GET /health/live" {
			live = &summary.Endpoints[i]
		}
	}
	require.NotNil(t, live, "summary: %s", raw)
	assert.EqualValues(t, 3, live.Requests)

	resp = doRequest(t, http.MethodGet, server.URL+"/metrics", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	exposition, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), `crm_http_requests_total{method="GET",route="/health/live",status="200"} 3`)
}

func TestE2EUnroutedPathsCollapseIntoOneEndpoint(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 100; i++ {
		resp := doRequest(t, http.MethodGet, fmt.Sprintf("%s/scan-%c%d/x", server.URL, 'a'+rune(i%26), i), nil, false)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	summary := server.aggregator.Summary()
	assert.Equal(t, 1, summary.TotalEndpoints)
	assert.EqualValues(t, 100, summary.TotalRequests)
	require.Len(t, summary.Endpoints, 1)
	assert.Equal(t, "GET "+middleware.UnmatchedRoute, summary.Endpoints[0].Key.String())

	resp := doRequest(t, http.MethodGet, server.URL+"/metrics", nil, false)
	exposition, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), `crm_http_requests_total{method="GET",route="unmatched",status="404"} 100`)
	assert.NotContains(t, string(exposition), "scan-")
}

func TestE2EAlertStreamOverWebSocket(t *testing.T) {
	server := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/alerts?token=" + testToken
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return server.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, _, err = server.engine.Trigger(valueobject.AlertBusiness, valueobject.SeverityWarning,
		map[string]interface{}{"message": "deal pipeline stalled"})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event dto.AlertEventDTO
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "alert", event.Type)
	assert.Equal(t, "business", event.Data.Type)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/alerts", nil)
	assert.Error(t, err, "missing token must be rejected")
}
