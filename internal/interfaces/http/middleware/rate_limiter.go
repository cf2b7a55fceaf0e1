package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreschagin/crm-monitoring/internal/application/port"
)

const (
	maxTrackedClients = 10_000
	clientIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter держит отдельный token bucket на каждый IP клиента
type IPRateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
// rps: requests per second allowed per IP
// burst: maximum burst size
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow расходует токен клиента ip
func (i *IPRateLimiter) Allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	item, exists := i.limiters[ip]
	if !exists {
		item = &clientLimiter{limiter: rate.NewLimiter(i.rps, i.burst)}
		i.limiters[ip] = item
	}
	item.lastSeen = now

	// Давно молчащие клиенты вычищаются, чтобы карта не росла без предела
	if len(i.limiters) > maxTrackedClients {
		threshold := now.Add(-clientIdleTTL)
		for key, entry := range i.limiters {
			if entry.lastSeen.Before(threshold) {
				delete(i.limiters, key)
			}
		}
	}

	return item.limiter.AllowN(now, 1)
}

// Tracked возвращает число отслеживаемых клиентов
func (i *IPRateLimiter) Tracked() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limiters)
}

// RateLimit ограничивает запросы по IP клиента; адрес определяет resolver
func RateLimit(limiter *IPRateLimiter, resolver *ClientIPResolver, sink port.MetricsSink) func(http.Handler) http.Handler {
	if sink == nil {
		sink = port.NopSink{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(resolver.ClientIP(r)) {
				sink.IncCounter("rate_limit_dropped_total", nil)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
