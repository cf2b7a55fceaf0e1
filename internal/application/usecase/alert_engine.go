package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
	"github.com/dreschagin/crm-monitoring/pkg/ringbuffer"
	"github.com/dreschagin/crm-monitoring/pkg/scheduler"
)

// ErrAlertNotFound возвращается Resolve для неизвестного или уже неактивного id
var ErrAlertNotFound = errors.New("alert not found")

// DefaultHistoryLimit - размер выборки History при limit <= 0
const DefaultHistoryLimit = 50

// RequestMetricsReader - источник error rate и задержек (service.MetricAggregator)
type RequestMetricsReader interface {
	Percentiles() service.PercentileReport
}

// AlertEngineConfig - пороги, окно подавления и интервал оценки
type AlertEngineConfig struct {
	ErrorRate    valueobject.ThresholdPair
	ResponseTime valueobject.ThresholdPair
	DatabasePool valueobject.ThresholdPair
	Memory       valueobject.ThresholdPair
	CPU          valueobject.ThresholdPair

	SuppressionWindow  time.Duration
	EvaluationInterval time.Duration
	HistorySize        int
}

// AlertStatistics - счетчики алертов за окно
type AlertStatistics struct {
	Total      int
	ByType     map[valueobject.AlertType]int
	BySeverity map[valueobject.Severity]int
}

// AlertStatsReport - результат Statistics
type AlertStatsReport struct {
	Last24h AlertStatistics
	Last7d  AlertStatistics
	Active  int
}

// AlertEngine периодически сверяет показатели с порогами и ведет состояние алертов.
// Повтор (type, severity) внутри окна подавления не создает новой записи.
type AlertEngine struct {
	cfg        AlertEngineConfig
	clock      clock.WithTicker
	metrics    RequestMetricsReader
	database   port.DatabaseHealthProvider
	system     port.SystemStatsProvider
	dispatcher *NotificationDispatcher
	sink       port.MetricsSink
	logger     *logger.Logger

	mu      sync.Mutex
	active  map[entity.AlertKey]*entity.Alert
	history *ringbuffer.Buffer[*entity.Alert]

	ticker *scheduler.Scheduler
}

// NewAlertEngine создает движок. database и system могут быть nil, тогда их классы пропускаются.
func NewAlertEngine(
	cfg AlertEngineConfig,
	clk clock.WithTicker,
	metrics RequestMetricsReader,
	database port.DatabaseHealthProvider,
	system port.SystemStatsProvider,
	dispatcher *NotificationDispatcher,
	sink port.MetricsSink,
	log *logger.Logger,
) *AlertEngine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 500
	}
	if cfg.EvaluationInterval <= 0 {
		cfg.EvaluationInterval = time.Minute
	}
	if sink == nil {
		sink = port.NopSink{}
	}

	e := &AlertEngine{
		cfg:        cfg,
		clock:      clk,
		metrics:    metrics,
		database:   database,
		system:     system,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     log,
		active:     make(map[entity.AlertKey]*entity.Alert),
		history:    ringbuffer.New[*entity.Alert](cfg.HistorySize),
	}
	e.ticker = scheduler.New("alert-evaluation", cfg.EvaluationInterval, clk, e.Evaluate, log)
	return e
}

// Start запускает периодическую оценку
func (e *AlertEngine) Start(ctx context.Context) error {
	return e.ticker.Start(ctx)
}

// Stop останавливает оценку и дожидается текущего прохода
func (e *AlertEngine) Stop() {
	e.ticker.Stop()
}

// thresholdCheck читает текущее значение одного класса
type thresholdCheck struct {
	alertType  valueobject.AlertType
	thresholds valueobject.ThresholdPair
	unit       string
	read       func(ctx context.Context) (value float64, details map[string]interface{}, ok bool, err error)
}

// Evaluate проверяет все классы порогов. Сбой одного класса логируется и не прерывает остальные.
func (e *AlertEngine) Evaluate(ctx context.Context) {
	for _, check := range e.checks() {
		if ctx.Err() != nil {
			return
		}
		if err := e.evaluateOne(ctx, check); err != nil {
			e.logger.Error("Alert evaluation failed", err, "type", check.alertType.String())
		}
	}
}

func (e *AlertEngine) evaluateOne(ctx context.Context, check thresholdCheck) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	value, details, ok, err := check.read(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	severity, breached := check.thresholds.Classify(value)
	if !breached {
		return nil
	}

	if details == nil {
		details = make(map[string]interface{})
	}
	details["value"] = round2(value)
	details["threshold"] = check.thresholds.ThresholdFor(severity)
	if _, has := details["message"]; !has {
		details["message"] = fmt.Sprintf("%s is %.2f%s (threshold %.2f%s)",
			check.alertType.String(), value, check.unit, check.thresholds.ThresholdFor(severity), check.unit)
	}

	_, _, err = e.Trigger(check.alertType, severity, details)
	return err
}

func (e *AlertEngine) checks() []thresholdCheck {
	checks := []thresholdCheck{
		{
			alertType:  valueobject.AlertErrorRate,
			thresholds: e.cfg.ErrorRate,
			unit:       "%",
			read: func(context.Context) (float64, map[string]interface{}, bool, error) {
				p := e.metrics.Percentiles()
				if p.TotalRequests == 0 {
					return 0, nil, false, nil
				}
				return p.ErrorRate, map[string]interface{}{"total_requests": p.TotalRequests}, true, nil
			},
		},
		{
			alertType:  valueobject.AlertResponseTime,
			thresholds: e.cfg.ResponseTime,
			unit:       "ms",
			read: func(context.Context) (float64, map[string]interface{}, bool, error) {
				p := e.metrics.Percentiles()
				if p.TotalRequests == 0 {
					return 0, nil, false, nil
				}
				return p.P95, map[string]interface{}{"p50_ms": round2(p.P50), "p99_ms": round2(p.P99)}, true, nil
			},
		},
	}

	if e.database != nil {
		checks = append(checks, thresholdCheck{
			alertType:  valueobject.AlertDatabase,
			thresholds: e.cfg.DatabasePool,
			unit:       "%",
			read:       e.readDatabasePool,
		})
	}

	if e.system != nil {
		checks = append(checks,
			thresholdCheck{
				alertType:  valueobject.AlertMemory,
				thresholds: e.cfg.Memory,
				unit:       "%",
				read: func(ctx context.Context) (float64, map[string]interface{}, bool, error) {
					v, err := e.system.MemoryUsage(ctx)
					return v, nil, err == nil, err
				},
			},
			thresholdCheck{
				alertType:  valueobject.AlertCPU,
				thresholds: e.cfg.CPU,
				unit:       "%",
				read: func(ctx context.Context) (float64, map[string]interface{}, bool, error) {
					v, err := e.system.CPUUsage(ctx)
					return v, nil, err == nil, err
				},
			},
		)
	}

	return checks
}

// readDatabasePool возвращает загрузку пула; потеря соединения сразу поднимает critical
func (e *AlertEngine) readDatabasePool(ctx context.Context) (float64, map[string]interface{}, bool, error) {
	h, err := e.database.Health(ctx)
	if err != nil {
		return 0, nil, false, fmt.Errorf("database health: %w", err)
	}

	if !h.Connected {
		details := map[string]interface{}{"message": "database is disconnected"}
		if h.Error != "" {
			details["error"] = h.Error
		}
		_, _, err := e.Trigger(valueobject.AlertDatabase, valueobject.SeverityCritical, details)
		return 0, nil, false, err
	}

	details := map[string]interface{}{
		"pool_total":  h.PoolStats.Total,
		"pool_used":   h.PoolStats.Used,
		"pool_free":   h.PoolStats.Free,
		"pool_queued": h.PoolStats.Queued,
	}
	return h.PoolStats.Utilization(), details, true, nil
}

// Trigger создает алерт, если для пары (type, severity) нет активного алерта моложе окна подавления.
// При подавлении возвращается существующий алерт и suppressed=true.
func (e *AlertEngine) Trigger(
	alertType valueobject.AlertType,
	severity valueobject.Severity,
	details map[string]interface{},
) (alert *entity.Alert, suppressed bool, err error) {
	if err := service.ValidateAlertRequest(alertType, severity, details); err != nil {
		return nil, false, err
	}

	now := e.clock.Now()
	key := entity.AlertKey{Type: alertType, Severity: severity}
	labels := port.Labels{"type": alertType.String(), "severity": severity.String()}

	e.mu.Lock()
	if existing, ok := e.active[key]; ok && now.Sub(existing.CreatedAt()) < e.cfg.SuppressionWindow {
		snapshot := existing.Clone()
		e.mu.Unlock()

		e.sink.IncCounter("alerts_suppressed_total", labels)
		e.logger.Debug("Alert suppressed", "key", key.String(), "alert_id", snapshot.ID())
		return snapshot, true, nil
	}

	created, err := entity.NewAlert(alertType, severity, details, now)
	if err != nil {
		e.mu.Unlock()
		return nil, false, err
	}
	e.active[key] = created
	e.history.Push(created)
	e.sink.SetGauge("active_alerts", nil, float64(len(e.active)))
	snapshot := created.Clone()
	e.mu.Unlock()

	e.sink.IncCounter("alerts_triggered_total", labels)
	e.logger.Warn("Alert triggered",
		"alert_id", snapshot.ID(),
		"type", alertType.String(),
		"severity", severity.String(),
		"message", snapshot.Message(),
	)

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(snapshot)
	}

	return snapshot, false, nil
}

// Resolve помечает активный алерт разрешенным и убирает его из активных
func (e *AlertEngine) Resolve(alertID string) (*entity.Alert, error) {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	for key, a := range e.active {
		if a.ID() != alertID {
			continue
		}
		if err := a.Resolve(now); err != nil {
			return nil, err
		}
		delete(e.active, key)
		e.sink.SetGauge("active_alerts", nil, float64(len(e.active)))
		e.logger.Info("Alert resolved", "alert_id", alertID, "key", key.String())
		return a.Clone(), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
}

// ActiveAlerts возвращает неразрешенные алерты, новые первыми
func (e *AlertEngine) ActiveAlerts() []*entity.Alert {
	e.mu.Lock()
	out := make([]*entity.Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, a.Clone())
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out
}

// History возвращает последние limit алертов, новые первыми
func (e *AlertEngine) History(limit int) []*entity.Alert {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	recent := e.history.Newest(limit)
	out := make([]*entity.Alert, len(recent))
	for i, a := range recent {
		out[i] = a.Clone()
	}
	return out
}

// Statistics считает алерты из истории за последние 24 часа и 7 дней
func (e *AlertEngine) Statistics() AlertStatsReport {
	now := e.clock.Now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	report := AlertStatsReport{Last24h: newAlertStatistics(), Last7d: newAlertStatistics()}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.history.Items() {
		if a.CreatedAt().After(weekAgo) {
			report.Last7d.add(a)
		}
		if a.CreatedAt().After(dayAgo) {
			report.Last24h.add(a)
		}
	}
	report.Active = len(e.active)

	return report
}

func newAlertStatistics() AlertStatistics {
	return AlertStatistics{
		ByType:     make(map[valueobject.AlertType]int),
		BySeverity: make(map[valueobject.Severity]int),
	}
}

func (s *AlertStatistics) add(a *entity.Alert) {
	s.Total++
	s.ByType[a.Type()]++
	s.BySeverity[a.Severity()]++
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
