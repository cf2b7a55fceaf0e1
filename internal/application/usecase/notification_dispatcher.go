package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// NotificationDispatcher рассылает алерты во все каналы асинхронно.
// Каждый канал работает в своей goroutine со своим таймаутом, сбой одного не влияет на другие.
type NotificationDispatcher struct {
	notifiers []port.Notifier
	timeout   time.Duration
	sink      port.MetricsSink
	logger    *logger.Logger

	wg sync.WaitGroup
}

// NewNotificationDispatcher создает dispatcher для включенных каналов
func NewNotificationDispatcher(
	notifiers []port.Notifier,
	timeout time.Duration,
	sink port.MetricsSink,
	log *logger.Logger,
) *NotificationDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if sink == nil {
		sink = port.NopSink{}
	}
	return &NotificationDispatcher{
		notifiers: notifiers,
		timeout:   timeout,
		sink:      sink,
		logger:    log,
	}
}

// Channels возвращает имена подключенных каналов
func (d *NotificationDispatcher) Channels() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Dispatch запускает доставку и сразу возвращает управление.
// alert не должен изменяться после передачи.
func (d *NotificationDispatcher) Dispatch(alert *entity.Alert) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go d.send(n, alert)
	}
}

// Wait ждет завершения всех начатых доставок
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

func (d *NotificationDispatcher) send(n port.Notifier, alert *entity.Alert) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panic: %v", r)
			}
		}()
		return n.Notify(ctx, alert)
	}()

	result := "success"
	if err != nil {
		result = "failure"
		d.logger.Error("Failed to deliver alert notification", err,
			"channel", n.Name(),
			"alert_id", alert.ID(),
			"type", alert.Type().String(),
		)
	} else {
		d.logger.Debug("Alert notification delivered", "channel", n.Name(), "alert_id", alert.ID())
	}

	d.sink.IncCounter("alert_notifications_total", port.Labels{"channel": n.Name(), "result": result})
}
