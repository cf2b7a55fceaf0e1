package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
	"github.com/dreschagin/crm-monitoring/pkg/ringbuffer"
)

// ErrCheckNotFound возвращается RunOne для незарегистрированной проверки
var ErrCheckNotFound = errors.New("health check not found")

// TimeoutError - текст ошибки результата, синтезированного по таймауту
const TimeoutError = "timeout"

// ProbeFunc - одна health-проверка. Пустой Status в результате без ошибки считается healthy.
// ctx отменяется по таймауту проверки; probe, игнорирующий ctx, дорабатывает в фоне,
// а его результат отбрасывается.
type ProbeFunc func(ctx context.Context) (entity.HealthCheckResult, error)

// HealthOrchestratorConfig - параметры оркестратора
type HealthOrchestratorConfig struct {
	Timeout     time.Duration
	HistorySize int
}

// HealthOrchestrator параллельно запускает зарегистрированные проверки и сводит их в отчет
type HealthOrchestrator struct {
	cfg    HealthOrchestratorConfig
	clock  clock.PassiveClock
	sink   port.MetricsSink
	logger *logger.Logger

	mu     sync.RWMutex
	probes map[string]ProbeFunc

	historyMu sync.Mutex
	history   *ringbuffer.Buffer[entity.HealthSnapshot]
	last      *entity.HealthReport
}

// NewHealthOrchestrator создает оркестратор без зарегистрированных проверок
func NewHealthOrchestrator(
	cfg HealthOrchestratorConfig,
	clk clock.PassiveClock,
	sink port.MetricsSink,
	log *logger.Logger,
) *HealthOrchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if sink == nil {
		sink = port.NopSink{}
	}

	return &HealthOrchestrator{
		cfg:     cfg,
		clock:   clk,
		sink:    sink,
		logger:  log,
		probes:  make(map[string]ProbeFunc),
		history: ringbuffer.New[entity.HealthSnapshot](cfg.HistorySize),
	}
}

// Register добавляет проверку; повторная регистрация имени заменяет прежнюю
func (o *HealthOrchestrator) Register(name string, probe ProbeFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probes[name] = probe
}

// Unregister удаляет проверку
func (o *HealthOrchestrator) Unregister(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.probes, name)
}

// Names возвращает отсортированные имена зарегистрированных проверок
func (o *HealthOrchestrator) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.probes))
	for name := range o.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunAll запускает все проверки параллельно и ждет каждую (или ее таймаут).
// Сбой проверки никогда не становится ошибкой самого оркестратора.
func (o *HealthOrchestrator) RunAll(ctx context.Context) entity.HealthReport {
	start := o.clock.Now()

	o.mu.RLock()
	probes := make(map[string]ProbeFunc, len(o.probes))
	for name, p := range o.probes {
		probes[name] = p
	}
	o.mu.RUnlock()

	var (
		resultsMu sync.Mutex
		results   = make(map[string]entity.HealthCheckResult, len(probes))
		g         errgroup.Group
	)
	for name, probe := range probes {
		g.Go(func() error {
			res := o.runProbe(ctx, name, probe)
			resultsMu.Lock()
			results[name] = res
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status, summary := service.ReduceHealth(results)
	report := entity.HealthReport{
		Timestamp: start,
		Status:    status,
		Checks:    results,
		Summary:   summary,
		Duration:  o.clock.Since(start),
	}

	o.historyMu.Lock()
	o.history.Push(report.Snapshot())
	o.last = &report
	o.historyMu.Unlock()

	if status != valueobject.StatusHealthy {
		o.logger.Warn("System health is not healthy",
			"status", status.String(),
			"failed", summary.Failed,
			"warnings", summary.Warnings,
		)
	}

	return report
}

// RunOne запускает одну проверку вне логики сведения
func (o *HealthOrchestrator) RunOne(ctx context.Context, name string) (entity.HealthCheckResult, error) {
	o.mu.RLock()
	probe, ok := o.probes[name]
	o.mu.RUnlock()
	if !ok {
		return entity.HealthCheckResult{}, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}

	return o.runProbe(ctx, name, probe), nil
}

// History возвращает сохраненные снимки от старых к новым
func (o *HealthOrchestrator) History() []entity.HealthSnapshot {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	return o.history.Items()
}

// LastReport возвращает последний полный отчет
func (o *HealthOrchestrator) LastReport() (entity.HealthReport, bool) {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	if o.last == nil {
		return entity.HealthReport{}, false
	}
	return *o.last, true
}

type probeOutcome struct {
	result entity.HealthCheckResult
	err    error
}

// runProbe гоняет probe против таймаута. Panic и ошибки превращаются в unhealthy.
func (o *HealthOrchestrator) runProbe(ctx context.Context, name string, probe ProbeFunc) entity.HealthCheckResult {
	start := o.clock.Now()

	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	done := make(chan probeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := probe(probeCtx)
		done <- probeOutcome{result: res, err: err}
	}()

	var result entity.HealthCheckResult
	select {
	case out := <-done:
		result = out.result
		if out.err != nil {
			result.Status = valueobject.CheckUnhealthy
			result.Error = out.err.Error()
		} else if result.Status == "" {
			result.Status = valueobject.CheckHealthy
		}
	case <-probeCtx.Done():
		msg := TimeoutError
		if ctx.Err() != nil {
			msg = ctx.Err().Error()
		}
		result = entity.HealthCheckResult{Status: valueobject.CheckUnhealthy, Error: msg}
	}

	result.Name = name
	result.Duration = o.clock.Since(start)

	if result.Status == valueobject.CheckUnhealthy {
		o.logger.Warn("Health check failed", "check", name, "error", result.Error)
	}
	o.sink.ObserveHistogram("health_check_duration_ms",
		port.Labels{"check": name, "status": result.Status.String()},
		float64(result.Duration)/float64(time.Millisecond),
	)

	return result
}
