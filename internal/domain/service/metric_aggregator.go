package service

import (
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/ringbuffer"
)

const (
	// TopEndpoints - сколько endpoint'ов попадает в Summary
	TopEndpoints = 20
	// RecentSlowOperations - сколько медленных операций попадает в Summary
	RecentSlowOperations = 10
)

// SlowEventObserver получает warning-события агрегатора (медленный запрос, медленная операция).
// Вызывается без удержания блокировки агрегатора.
type SlowEventObserver interface {
	SlowRequest(key valueobject.EndpointKey, durationMs float64, statusCode int)
	SlowOperation(op entity.SlowOperation)
}

// AggregatorConfig - параметры MetricAggregator
type AggregatorConfig struct {
	SlowRequestThreshold   time.Duration
	SlowOperationThreshold time.Duration
	SlowLogSize            int
	Retention              time.Duration
}

// DefaultAggregatorConfig возвращает значения по умолчанию
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		SlowRequestThreshold:   time.Second,
		SlowOperationThreshold: 100 * time.Millisecond,
		SlowLogSize:            100,
		Retention:              time.Hour,
	}
}

// EndpointSummary - сводка по одному endpoint
type EndpointSummary struct {
	Key          valueobject.EndpointKey
	Requests     int64
	Errors       int64
	AvgLatencyMs float64
	ErrorRate    float64
	LastUsed     time.Time
}

// MetricsSummary - результат Summary
type MetricsSummary struct {
	Endpoints      []EndpointSummary
	SlowOperations []entity.SlowOperation
	TotalEndpoints int
	TotalRequests  int64
	TotalErrors    int64
}

// PercentileReport - результат Percentiles
type PercentileReport struct {
	LatencyPercentiles
	ErrorRate     float64
	TotalRequests int64
}

// MetricAggregator накапливает статистику запросов и медленных операций (Domain Service).
// Все операции потокобезопасны; обновление одного endpoint атомарно.
type MetricAggregator struct {
	cfg      AggregatorConfig
	clock    clock.PassiveClock
	observer SlowEventObserver

	mu        sync.Mutex
	endpoints map[valueobject.EndpointKey]*entity.EndpointStat
	slowOps   *ringbuffer.Buffer[entity.SlowOperation]
}

// NewMetricAggregator создает новый MetricAggregator. observer может быть nil.
func NewMetricAggregator(cfg AggregatorConfig, clk clock.PassiveClock, observer SlowEventObserver) *MetricAggregator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.SlowLogSize <= 0 {
		cfg.SlowLogSize = DefaultAggregatorConfig().SlowLogSize
	}

	return &MetricAggregator{
		cfg:       cfg,
		clock:     clk,
		observer:  observer,
		endpoints: make(map[valueobject.EndpointKey]*entity.EndpointStat),
		slowOps:   ringbuffer.New[entity.SlowOperation](cfg.SlowLogSize),
	}
}

// RecordRequest учитывает завершенный HTTP запрос
func (a *MetricAggregator) RecordRequest(key valueobject.EndpointKey, duration time.Duration, statusCode int) {
	ms := toMillis(duration)
	now := a.clock.Now()

	a.mu.Lock()
	stat, ok := a.endpoints[key]
	if !ok {
		stat = &entity.EndpointStat{Key: key}
		a.endpoints[key] = stat
	}
	stat.Record(ms, statusCode, now)
	a.mu.Unlock()

	if duration > a.cfg.SlowRequestThreshold && a.observer != nil {
		a.observer.SlowRequest(key, ms, statusCode)
	}
}

// RecordOperation учитывает операцию (обычно запрос к БД).
// В буфер попадают только операции медленнее порога, описание предварительно очищается.
func (a *MetricAggregator) RecordOperation(description string, duration time.Duration, metadata map[string]interface{}) {
	if duration <= a.cfg.SlowOperationThreshold {
		return
	}

	op := entity.SlowOperation{
		Description: SanitizeOperation(description),
		DurationMs:  toMillis(duration),
		Timestamp:   a.clock.Now(),
		Metadata:    metadata,
	}

	a.mu.Lock()
	a.slowOps.Push(op)
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.SlowOperation(op)
	}
}

// Summary возвращает топ endpoint'ов по числу запросов, последние медленные операции и итоги
func (a *MetricAggregator) Summary() MetricsSummary {
	a.mu.Lock()
	endpoints := make([]EndpointSummary, 0, len(a.endpoints))
	var totalRequests, totalErrors int64
	for _, s := range a.endpoints {
		endpoints = append(endpoints, EndpointSummary{
			Key:          s.Key,
			Requests:     s.Count,
			Errors:       s.Errors,
			AvgLatencyMs: s.AverageLatencyMs(),
			ErrorRate:    s.ErrorRate(),
			LastUsed:     s.LastUsed,
		})
		totalRequests += s.Count
		totalErrors += s.Errors
	}
	slow := a.slowOps.Newest(RecentSlowOperations)
	a.mu.Unlock()

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Requests != endpoints[j].Requests {
			return endpoints[i].Requests > endpoints[j].Requests
		}
		return endpoints[i].Key.String() < endpoints[j].Key.String()
	})

	total := len(endpoints)
	if len(endpoints) > TopEndpoints {
		endpoints = endpoints[:TopEndpoints]
	}

	return MetricsSummary{
		Endpoints:      endpoints,
		SlowOperations: slow,
		TotalEndpoints: total,
		TotalRequests:  totalRequests,
		TotalErrors:    totalErrors,
	}
}

// Percentiles считает перцентили по средним задержкам endpoint'ов и общий error rate (%)
func (a *MetricAggregator) Percentiles() PercentileReport {
	a.mu.Lock()
	averages := make([]float64, 0, len(a.endpoints))
	var totalRequests, totalErrors int64
	for _, s := range a.endpoints {
		averages = append(averages, s.AverageLatencyMs())
		totalRequests += s.Count
		totalErrors += s.Errors
	}
	a.mu.Unlock()

	report := PercentileReport{
		LatencyPercentiles: ComputePercentiles(averages),
		TotalRequests:      totalRequests,
	}
	if totalRequests > 0 {
		report.ErrorRate = float64(totalErrors) / float64(totalRequests) * 100
	}
	return report
}

// Cleanup удаляет медленные операции и endpoint'ы старше окна хранения.
// Возвращает число удаленных endpoint'ов и операций.
func (a *MetricAggregator) Cleanup() (endpoints, operations int) {
	cutoff := a.clock.Now().Add(-a.cfg.Retention)

	a.mu.Lock()
	defer a.mu.Unlock()

	operations = a.slowOps.Retain(func(op entity.SlowOperation) bool {
		return !op.Timestamp.Before(cutoff)
	})

	for key, s := range a.endpoints {
		if s.LastUsed.Before(cutoff) {
			delete(a.endpoints, key)
			endpoints++
		}
	}

	return endpoints, operations
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
