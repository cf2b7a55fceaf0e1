package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/crm-monitoring/internal/domain/entity"
)

// SendFunc совпадает с сигнатурой smtp.SendMail
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Config - параметры SMTP канала
type Config struct {
	SMTPAddr   string
	From       string
	Recipients []string
	Username   string
	Password   string
}

// Notifier отправляет алерты письмом (port.Notifier).
// smtp.SendMail не принимает context: при отмене ctx Notify возвращает ошибку,
// а отправка дорабатывает в фоне.
type Notifier struct {
	cfg  Config
	auth smtp.Auth
	send SendFunc
}

// NewNotifier создает email канал; send == nil означает smtp.SendMail
func NewNotifier(cfg Config, send SendFunc) *Notifier {
	if send == nil {
		send = smtp.SendMail
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		host, _, err := net.SplitHostPort(cfg.SMTPAddr)
		if err != nil {
			host = cfg.SMTPAddr
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return &Notifier{cfg: cfg, auth: auth, send: send}
}

func (n *Notifier) Name() string {
	return "email"
}

func (n *Notifier) Notify(ctx context.Context, alert *entity.Alert) error {
	msg := n.buildMessage(alert)

	done := make(chan error, 1)
	go func() {
		done <- n.send(n.cfg.SMTPAddr, n.auth, n.cfg.From, n.cfg.Recipients, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (n *Notifier) buildMessage(alert *entity.Alert) []byte {
	var b bytes.Buffer

	subject := fmt.Sprintf("[CRM %s] %s alert", strings.ToUpper(alert.Severity().String()), alert.Type().String())

	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", alert.CreatedAt().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "%s\r\n\r\n", alert.Message())
	fmt.Fprintf(&b, "Alert ID: %s\r\n", alert.ID())
	fmt.Fprintf(&b, "Type: %s\r\n", alert.Type().String())
	fmt.Fprintf(&b, "Severity: %s\r\n", alert.Severity().String())
	fmt.Fprintf(&b, "Time: %s\r\n", alert.CreatedAt().UTC().Format(time.RFC3339))

	details := alert.Details()
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", k, details[k])
	}

	return b.Bytes()
}
