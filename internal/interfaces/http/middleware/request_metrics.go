package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

const (
	// UnmatchedRoute - общий маршрут для запросов, не совпавших ни с одним шаблоном ServeMux
	UnmatchedRoute = "unmatched"
	otherMethod    = "OTHER"
)

var knownMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodHead: {}, http.MethodPost: {}, http.MethodPut: {},
	http.MethodPatch: {}, http.MethodDelete: {}, http.MethodOptions: {},
}

// RequestRecorder принимает длительность и статус каждого запроса
type RequestRecorder interface {
	RecordRequest(key valueobject.EndpointKey, duration time.Duration, status int)
}

// RequestMetrics кормит агрегатор метрик и MetricsSink данными о каждом запросе.
// Ключом служит шаблон, выбранный ServeMux ("/alerts/{id}/resolve"), а не сырой путь,
// поэтому число endpoint'ов и серий ограничено числом маршрутов.
// Должен оборачивать mux без промежуточного клонирования *http.Request.
func RequestMetrics(recorder RequestRecorder, sink port.MetricsSink) func(http.Handler) http.Handler {
	if sink == nil {
		sink = port.NopSink{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			key := routeKey(r)
			recorder.RecordRequest(key, duration, wrapped.statusCode)

			sink.IncCounter("http_requests_total", port.Labels{
				"method": key.Method,
				"route":  key.Route,
				"status": strconv.Itoa(wrapped.statusCode),
			})
			sink.ObserveHistogram("http_request_duration_ms", port.Labels{
				"method": key.Method,
				"route":  key.Route,
			}, float64(duration.Microseconds())/1000)
		})
	}
}

// routeKey строит ключ по r.Pattern, который ServeMux выставляет при совпадении
func routeKey(r *http.Request) valueobject.EndpointKey {
	method := strings.ToUpper(r.Method)
	if _, ok := knownMethods[method]; !ok {
		method = otherMethod
	}

	pattern := r.Pattern
	if pattern == "" {
		return valueobject.EndpointKey{Method: method, Route: UnmatchedRoute}
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimSpace(path)
	}
	return valueobject.NewEndpointKey(method, pattern)
}
