package nats

import (
	"context"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
)

// AlertNotifier publishes alerts as events on <prefix>.<type>.<severity>.
// It implements port.Notifier.
type AlertNotifier struct {
	publisher port.EventPublisher
	prefix    string
}

// NewAlertNotifier creates a notifier on top of any EventPublisher
func NewAlertNotifier(publisher port.EventPublisher, subjectPrefix string) *AlertNotifier {
	return &AlertNotifier{publisher: publisher, prefix: subjectPrefix}
}

// Name returns the channel name
func (n *AlertNotifier) Name() string {
	return "nats"
}

// Subject returns the subject an alert is published on
func (n *AlertNotifier) Subject(alert *entity.Alert) string {
	return n.prefix + "." + alert.Type().String() + "." + alert.Severity().String()
}

// Notify publishes the alert event
func (n *AlertNotifier) Notify(ctx context.Context, alert *entity.Alert) error {
	return n.publisher.PublishEvent(ctx, n.Subject(alert), dto.NewAlertEventDTO(alert))
}
