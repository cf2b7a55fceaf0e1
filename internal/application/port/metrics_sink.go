package port

// Labels - набор меток метрики
type Labels map[string]string

// MetricsSink принимает записи метрик для внешней экспозиции (Prometheus, CloudWatch).
// Реализации должны быть безопасны для конкурентного вызова и не блокировать вызывающего.
type MetricsSink interface {
	IncCounter(name string, labels Labels)
	ObserveHistogram(name string, labels Labels, value float64)
	SetGauge(name string, labels Labels, value float64)
}

// MultiSink рассылает каждую запись во все вложенные sinks
type MultiSink []MetricsSink

func (m MultiSink) IncCounter(name string, labels Labels) {
	for _, s := range m {
		s.IncCounter(name, labels)
	}
}

func (m MultiSink) ObserveHistogram(name string, labels Labels, value float64) {
	for _, s := range m {
		s.ObserveHistogram(name, labels, value)
	}
}

func (m MultiSink) SetGauge(name string, labels Labels, value float64) {
	for _, s := range m {
		s.SetGauge(name, labels, value)
	}
}

// NopSink отбрасывает все записи
type NopSink struct{}

func (NopSink) IncCounter(string, Labels)                {}
func (NopSink) ObserveHistogram(string, Labels, float64) {}
func (NopSink) SetGauge(string, Labels, float64)         {}
