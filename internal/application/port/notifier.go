package port

import (
	"context"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
)

// Notifier - один канал доставки алертов (email, webhook, chat, NATS, WebSocket)
type Notifier interface {
	// Name возвращает имя канала для логов и метрик
	Name() string

	// Notify доставляет alert. Ошибка не должна влиять на другие каналы.
	Notify(ctx context.Context, alert *entity.Alert) error
}
