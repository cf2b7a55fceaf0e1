package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/dreschagin/crm-monitoring/internal/application/dto"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// ErrBroadcastQueueFull возвращается Notify, когда очередь рассылки переполнена
var ErrBroadcastQueueFull = errors.New("websocket broadcast queue full")

// Hub управляет WebSocket клиентами и рассылает им алерты.
// Реализует интерфейс port.Notifier.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]struct{}

	// Очередь алертов на рассылку
	broadcast chan *dto.AlertEventDTO

	register   chan *Client
	unregister chan *Client

	// Закрывается при остановке Run
	done chan struct{}

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *dto.AlertEventDTO, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает hub до отмены ctx (запускается в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Медленный клиент отключается, чтобы не тормозить остальных
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client channel full, disconnected")
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Alert broadcasted to clients", "alert_id", event.Data.ID)
		}
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Name реализует port.Notifier
func (h *Hub) Name() string {
	return "websocket"
}

// Notify ставит алерт в очередь рассылки всем подключенным клиентам
func (h *Hub) Notify(ctx context.Context, alert *entity.Alert) error {
	select {
	case h.broadcast <- dto.NewAlertEventDTO(alert):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBroadcastQueueFull
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
