package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
	"github.com/dreschagin/crm-monitoring/internal/domain/valueobject"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func TestNotifier_SendsMail(t *testing.T) {
	var got sentMail
	send := func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		got = sentMail{addr: addr, auth: auth, from: from, to: to, msg: string(msg)}
		return nil
	}

	n := NewNotifier(Config{
		SMTPAddr:   "smtp.crm.local:587",
		From:       "alerts@crm.local",
		Recipients: []string{"ops@crm.local", "oncall@crm.local"},
		Username:   "alerts",
		Password:   "secret",
	}, send)

	alert, err := entity.NewAlert(valueobject.AlertDatabase, valueobject.SeverityCritical,
		map[string]interface{}{"message": "database is disconnected"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), alert))

	assert.Equal(t, "email", n.Name())
	assert.Equal(t, "smtp.crm.local:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "alerts@crm.local", got.from)
	assert.Equal(t, []string{"ops@crm.local", "oncall@crm.local"}, got.to)
	assert.Contains(t, got.msg, "Subject: [CRM CRITICAL] database alert\r\n")
	assert.Contains(t, got.msg, "To: ops@crm.local, oncall@crm.local\r\n")
	assert.Contains(t, got.msg, "Alert ID: "+alert.ID())
	assert.Contains(t, got.msg, "database is disconnected")
}

func TestNotifier_Errors(t *testing.T) {
	alert, err := entity.NewAlert(valueobject.AlertDisk, valueobject.SeverityWarning, nil, time.Now())
	require.NoError(t, err)

	failing := NewNotifier(Config{SMTPAddr: "smtp:25"}, func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	})
	assert.ErrorContains(t, failing.Notify(context.Background(), alert), "550 mailbox unavailable")

	block := make(chan struct{})
	defer close(block)
	hanging := NewNotifier(Config{SMTPAddr: "smtp:25"}, func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hanging.Notify(ctx, alert), context.DeadlineExceeded)
}
