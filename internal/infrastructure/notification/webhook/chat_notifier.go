package webhook

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// ChatMessage - сообщение в формате incoming webhook чата (Slack-совместимый)
type ChatMessage struct {
	Channel     string           `json:"channel,omitempty"`
	Username    string           `json:"username"`
	Text        string           `json:"text"`
	Attachments []ChatAttachment `json:"attachments"`
}

type ChatAttachment struct {
	Color  string      `json:"color"`
	Title  string      `json:"title"`
	Text   string      `json:"text"`
	Fields []ChatField `json:"fields,omitempty"`
	Ts     int64       `json:"ts"`
}

type ChatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// ChatNotifier публикует алерты в канал чата через incoming webhook (port.Notifier)
type ChatNotifier struct {
	url     string
	channel string
	poster  *jsonPoster
}

// NewChatNotifier создает chat канал. client может быть nil.
func NewChatNotifier(webhookURL, channel string, client *http.Client, log *logger.Logger) *ChatNotifier {
	return &ChatNotifier{url: webhookURL, channel: channel, poster: newJSONPoster("chat", client, log)}
}

func (n *ChatNotifier) Name() string {
	return "chat"
}

func (n *ChatNotifier) Notify(ctx context.Context, alert *entity.Alert) error {
	return n.poster.post(ctx, n.url, n.buildMessage(alert))
}

func (n *ChatNotifier) buildMessage(alert *entity.Alert) ChatMessage {
	details := alert.Details()
	keys := make([]string, 0, len(details))
	for k := range details {
		if k != "message" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fields := []ChatField{
		{Title: "Type", Value: alert.Type().String(), Short: true},
		{Title: "Severity", Value: alert.Severity().String(), Short: true},
	}
	for _, k := range keys {
		fields = append(fields, ChatField{Title: k, Value: fmt.Sprint(details[k]), Short: true})
	}

	return ChatMessage{
		Channel:  n.channel,
		Username: "CRM Monitoring",
		Text:     alert.Message(),
		Attachments: []ChatAttachment{{
			Color:  severityColor(alert.Severity()),
			Title:  fmt.Sprintf("%s alert %s", alert.Type().String(), alert.ID()),
			Text:   alert.Message(),
			Fields: fields,
			Ts:     alert.CreatedAt().Unix(),
		}},
	}
}

func severityColor(s valueobject.Severity) string {
	switch s {
	case valueobject.SeverityCritical:
		return "danger"
	case valueobject.SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}
