package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/service"
)

type recordingSink struct {
	mu       sync.Mutex
	counters map[string]int
	observed map[string][]float64
	gauges   map[string]float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counters: map[string]int{}, observed: map[string][]float64{}, gauges: map[string]float64{}}
}

func (s *recordingSink) IncCounter(name string, _ port.Labels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
}

func (s *recordingSink) ObserveHistogram(name string, _ port.Labels, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[name] = append(s.observed[name], v)
}

func (s *recordingSink) SetGauge(name string, _ port.Labels, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[name] = v
}

func (s *recordingSink) gauge(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gauges[name]
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

type fakeNotifier struct {
	name  string
	err   error
	panic bool

	mu     sync.Mutex
	alerts []*entity.Alert
}

func (n *fakeNotifier) Name() string { return n.name }

func (n *fakeNotifier) Notify(_ context.Context, a *entity.Alert) error {
	if n.panic {
		panic("channel exploded")
	}
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	return n.err
}

func (n *fakeNotifier) received() []*entity.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*entity.Alert(nil), n.alerts...)
}

type fakeRequestMetrics struct {
	mu     sync.Mutex
	report service.PercentileReport
}

func (f *fakeRequestMetrics) Percentiles() service.PercentileReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

type fakeDatabase struct {
	health port.DatabaseHealth
	err    error
}

func (f *fakeDatabase) Health(context.Context) (port.DatabaseHealth, error) {
	return f.health, f.err
}

type fakeSystemStats struct {
	memory, cpu, disk float64
	cpuErr            error
}

func (f *fakeSystemStats) MemoryUsage(context.Context) (float64, error) { return f.memory, nil }

func (f *fakeSystemStats) CPUUsage(context.Context) (float64, error) {
	if f.cpuErr != nil {
		return 0, f.cpuErr
	}
	return f.cpu, nil
}

func (f *fakeSystemStats) DiskUsage(context.Context, string) (float64, error) { return f.disk, nil }

var errBoom = errors.New("boom")
