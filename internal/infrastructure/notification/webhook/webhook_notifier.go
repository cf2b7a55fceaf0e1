package webhook

import (
	"context"
	"net/http"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// Payload - тело запроса generic webhook
type Payload struct {
	Source string        `json:"source"`
	Event  string        `json:"event"`
	Alert  *dto.AlertDTO `json:"alert"`
}

// Notifier отправляет алерты на произвольный HTTP endpoint (port.Notifier)
type Notifier struct {
	url    string
	poster *jsonPoster
}

// NewNotifier создает webhook канал. client может быть nil.
func NewNotifier(url string, client *http.Client, log *logger.Logger) *Notifier {
	return &Notifier{url: url, poster: newJSONPoster("webhook", client, log)}
}

func (n *Notifier) Name() string {
	return "webhook"
}

func (n *Notifier) Notify(ctx context.Context, alert *entity.Alert) error {
	return n.poster.post(ctx, n.url, Payload{
		Source: "crm-monitoring",
		Event:  "alert.triggered",
		Alert:  dto.FromAlert(alert),
	})
}
