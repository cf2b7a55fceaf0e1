package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

func TestNotificationDispatcher_IsolatesChannelFailures(t *testing.T) {
	email := &fakeNotifier{name: "email", err: errBoom}
	chat := &fakeNotifier{name: "chat", panic: true}
	webhook := &fakeNotifier{name: "webhook"}
	sink := newRecordingSink()

	d := NewNotificationDispatcher([]port.Notifier{email, chat, webhook}, time.Second, sink, logger.Nop())
	assert.Equal(t, []string{"email", "chat", "webhook"}, d.Channels())

	alert, err := entity.NewAlert(valueobject.AlertErrorRate, valueobject.SeverityCritical, nil, time.Now())
	require.NoError(t, err)

	d.Dispatch(alert)
	d.Wait()

	assert.Len(t, email.received(), 1)
	assert.Len(t, webhook.received(), 1)
	assert.Equal(t, alert.ID(), webhook.received()[0].ID())
	assert.Equal(t, 3, sink.count("alert_notifications_total"))
}
