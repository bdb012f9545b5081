package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/convertlab/secgate/config"
	"github.com/convertlab/secgate/internal/store"
	"github.com/convertlab/secgate/model"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

// Limiter counts requests per (subject, endpoint class) in fixed windows
// against a shared counter store. The store owns key expiry; the limiter only
// talks the increment-with-TTL contract.
type Limiter struct {
	cfg      *config.SecurityConfig
	counters store.CounterStore
	now      func() time.Time
}

func New(cfg *config.SecurityConfig, counters store.CounterStore) *Limiter {
	return &Limiter{
		cfg:      cfg,
		counters: counters,
		now:      time.Now,
	}
}

// CheckAndIncrement atomically increments the current window counter and
// reports whether the request is within the tier-scaled limit. A denied
// request still consumes a slot, which naturally throttles retries.
func (l *Limiter) CheckAndIncrement(ctx context.Context, subject string, class model.EndpointClass, tier model.UserTier) Result {
	window := l.cfg.RateWindow
	windowSecs := int64(window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	var (
		now       = l.now()
		windowKey = now.Unix() / windowSecs
		limit     = l.cfg.GetLimit(class, tier)
	)

	key := fmt.Sprintf("%s:%s:%d", subject, class, windowKey)
	count, err := l.counters.IncrAndGet(ctx, key, 2*window)
	if err != nil {
		if l.cfg.FailClosed() {
			slog.Error("Counter store unavailable, denying request", "subject", subject, "endpoint", class, "error", err)
			return Result{Allowed: false, Limit: limit}
		}
		slog.Warn("Counter store unavailable, allowing request", "subject", subject, "endpoint", class, "error", err)
		return Result{Allowed: true, Limit: limit}
	}

	if count > int64(limit) {
		windowEnd := time.Unix((windowKey+1)*windowSecs, 0)
		return Result{
			Allowed:    false,
			Count:      count,
			Limit:      limit,
			RetryAfter: windowEnd.Sub(now),
		}
	}
	return Result{Allowed: true, Count: count, Limit: limit}
}
