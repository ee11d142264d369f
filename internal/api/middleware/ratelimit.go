package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
)

const cleanupEvery = 5 * time.Minute

// MemoryLimiter is a per-key token bucket held in process memory. Use the
// redis limiter when more than one instance serves traffic.
type MemoryLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	limit    rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
	now         func() time.Time
}

// NewMemoryLimiter allows burst requests per window, refilled evenly.
func NewMemoryLimiter(burst int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:       rate.Limit(float64(burst) / window.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (ports.Quota, error) {
	now := m.now()
	lim := m.limiter(key, now)

	q := ports.Quota{Limit: m.burst, Allowed: lim.AllowN(now, 1)}
	q.Remaining = max(int(lim.TokensAt(now)), 0)
	if q.Allowed {
		q.Reset = now
		return q, nil
	}
	// time until one token is back
	missing := 1 - lim.TokensAt(now)
	q.Reset = now.Add(time.Duration(missing / float64(m.limit) * float64(time.Second)))
	return q, nil
}

func (m *MemoryLimiter) limiter(key string, now time.Time) *rate.Limiter {
	if l, ok := m.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}
	l, _ := m.limiters.LoadOrStore(key, rate.NewLimiter(m.limit, m.burst))
	m.cleanup(now)
	return l.(*rate.Limiter)
}

// cleanup drops buckets that have refilled completely.
func (m *MemoryLimiter) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastCleanup) < cleanupEvery {
		return
	}
	m.lastCleanup = now
	m.limiters.Range(func(k, v any) bool {
		if v.(*rate.Limiter).TokensAt(now) >= float64(m.burst) {
			m.limiters.Delete(k)
		}
		return true
	})
}

var errTooManyRequests = domain.NewError(http.StatusTooManyRequests, "Too many requests from this IP, please try again later!")

// RateLimit throttles requests per client IP. When the limiter itself fails
// the request is let through.
func RateLimit(limiter ports.RateLimiter, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			q, err := limiter.Allow(c.Request().Context(), ip)
			if err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.Reset.Unix(), 10))
			if !q.Allowed {
				retry := max(int(time.Until(q.Reset).Seconds()), 1)
				h.Set("Retry-After", strconv.Itoa(retry))
				return errTooManyRequests
			}
			return next(c)
		}
	}
}
