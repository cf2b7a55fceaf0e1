package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dreschagin/crm-monitoring/pkg/logger"
)

// consecutiveFailuresToTrip - после стольких ошибок подряд breaker открывается
const consecutiveFailuresToTrip = 3

// jsonPoster отправляет JSON POST через circuit breaker канала.
// Открытый breaker отклоняет доставку сразу, не нагружая недоступный endpoint.
type jsonPoster struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newJSONPoster(name string, client *http.Client, log *logger.Logger) *jsonPoster {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Notification circuit breaker state changed",
				"channel", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &jsonPoster{client: client, breaker: breaker}
}

func (p *jsonPoster) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "crm-monitoring")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s delivery failed: %w", p.breaker.Name(), err)
	}
	return nil
}

// state возвращает текущее состояние breaker'а
func (p *jsonPoster) state() gobreaker.State {
	return p.breaker.State()
}
