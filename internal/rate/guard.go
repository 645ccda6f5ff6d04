package rate

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const defaultMaxCooldown = 5 * time.Minute

// Guard is a token bucket plus a provider-announced cooldown.
type Guard struct {
	limit Limit
	now   func() time.Time

	mu       sync.Mutex
	tokens   float64
	last     time.Time
	cooldown time.Time
}

func NewGuard(limit Limit) *Guard {
	if limit.MaxCooldown <= 0 {
		limit.MaxCooldown = defaultMaxCooldown
	}
	return &Guard{
		limit:  limit,
		now:    time.Now,
		tokens: float64(limit.PerMinute),
	}
}

// Allow consumes one token when the budget and cooldown permit a request.
func (g *Guard) Allow() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Before(g.cooldown) {
		return Decision{Reason: ReasonCooldown, RetryAt: g.cooldown}
	}
	if !g.limit.Enabled() {
		return Decision{Allowed: true}
	}

	if g.last.IsZero() {
		g.last = now
	}
	perSecond := float64(g.limit.PerMinute) / time.Minute.Seconds()
	g.tokens += now.Sub(g.last).Seconds() * perSecond
	if capacity := float64(g.limit.PerMinute); g.tokens > capacity {
		g.tokens = capacity
	}
	g.last = now

	if g.tokens < 1 {
		wait := time.Duration((1 - g.tokens) / perSecond * float64(time.Second))
		return Decision{Reason: ReasonBudget, RetryAt: now.Add(wait)}
	}
	g.tokens--
	return Decision{Allowed: true}
}

// Record notes a response. 429 and 503 with Retry-After start a cooldown.
func (g *Guard) Record(status int, header http.Header) {
	lastStatusGauge.WithLabelValues(g.limit.Provider).Set(float64(status))
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}
	wait, ok := retryAfter(header.Get("Retry-After"), g.now())
	if !ok {
		return
	}
	if wait > g.limit.MaxCooldown {
		wait = g.limit.MaxCooldown
	}
	retryAfterGauge.WithLabelValues(g.limit.Provider).Set(wait.Seconds())

	g.mu.Lock()
	defer g.mu.Unlock()
	if until := g.now().Add(wait); until.After(g.cooldown) {
		g.cooldown = until
	}
}

func retryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if wait := at.Sub(now); wait > 0 {
		return wait, true
	}
	return 0, false
}

type roundTripper struct {
	guard *Guard
	base  http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := rt.guard.Allow()
	if !decision.Allowed {
		if req.Body != nil {
			req.Body.Close()
		}
		blockedCounter.WithLabelValues(rt.guard.limit.Provider, string(decision.Reason)).Inc()
		return nil, &RateLimitError{
			Provider: rt.guard.limit.Provider,
			Reason:   decision.Reason,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rt.guard.Record(resp.StatusCode, resp.Header)
	return resp, nil
}

// WrapHTTP returns a copy of base whose requests pass through a Guard for
// limit. A nil base gets a client with the given timeout.
func WrapHTTP(limit Limit, base *http.Client, timeout time.Duration) *http.Client {
	return wrap(NewGuard(limit), base, timeout)
}

func wrap(guard *Guard, base *http.Client, timeout time.Duration) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	clone := *base
	clone.Transport = &roundTripper{guard: guard, base: transport}
	return &clone
}
