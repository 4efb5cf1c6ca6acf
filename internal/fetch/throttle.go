package fetch

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinDelay is the default pause between two requests to the same domain.
const DefaultMinDelay = 800 * time.Millisecond

// Throttle enforces a minimum delay between requests to the same domain.
// One Throttle is created per process and handed to every Fetcher; the mutex
// only guards the registry, so waiting on one domain never blocks another.
type Throttle struct {
	mu       sync.Mutex
	minDelay time.Duration
	limiters map[string]*rate.Limiter
}

// NewThrottle creates a throttle registry. minDelay <= 0 disables pacing.
func NewThrottle(minDelay time.Duration) *Throttle {
	return &Throttle{
		minDelay: minDelay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	if t == nil || t.minDelay <= 0 {
		return ctx.Err()
	}
	return t.limiter(host).Wait(ctx)
}

// Domains returns how many domains have been seen.
func (t *Throttle) Domains() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

func (t *Throttle) limiter(host string) *rate.Limiter {
	key := domainKey(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.minDelay), 1)
		t.limiters[key] = l
	}
	return l
}

func domainKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
