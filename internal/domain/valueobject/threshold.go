package valueobject

// ThresholdPair - пороги warning/critical для одного класса алертов
type ThresholdPair struct {
	Warning  float64
	Critical float64
}

// Classify возвращает уровень, порог которого превышен значением.
// Critical проверяется первым; ok=false означает, что порог не пересечен.
func (p ThresholdPair) Classify(value float64) (Severity, bool) {
	switch {
	case value > p.Critical:
		return SeverityCritical, true
	case value > p.Warning:
		return SeverityWarning, true
	default:
		return "", false
	}
}

// ThresholdFor возвращает порог, соответствующий уровню
func (p ThresholdPair) ThresholdFor(s Severity) float64 {
	if s == SeverityCritical {
		return p.Critical
	}
	return p.Warning
}
