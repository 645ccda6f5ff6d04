package rate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testGuard(limit Limit) (*Guard, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	g := NewGuard(limit)
	g.now = c.now
	return g, c
}

func TestGuardBudgetRefills(t *testing.T) {
	g, c := testGuard(Limit{Provider: "neato", PerMinute: 2})

	assert.True(t, g.Allow().Allowed)
	assert.True(t, g.Allow().Allowed)

	blocked := g.Allow()
	assert.False(t, blocked.Allowed)
	assert.Equal(t, ReasonBudget, blocked.Reason)
	assert.WithinDuration(t, c.t.Add(30*time.Second), blocked.RetryAt, time.Millisecond)

	c.advance(31 * time.Second)
	assert.True(t, g.Allow().Allowed)
	assert.False(t, g.Allow().Allowed)
}

func TestGuardDisabledOnlyHonorsCooldown(t *testing.T) {
	g, c := testGuard(Limit{Provider: "neato"})
	for i := 0; i < 100; i++ {
		require.True(t, g.Allow().Allowed)
	}

	g.Record(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"10"}})
	decision := g.Allow()
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonCooldown, decision.Reason)

	c.advance(10 * time.Second)
	assert.True(t, g.Allow().Allowed)
}

func TestGuardCooldownCapped(t *testing.T) {
	g, c := testGuard(Limit{Provider: "neato", MaxCooldown: time.Minute})
	g.Record(http.StatusServiceUnavailable, http.Header{"Retry-After": []string{"3600"}})

	assert.Equal(t, c.t.Add(time.Minute), g.Allow().RetryAt)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"", 0, false},
		{"5", 5 * time.Second, true},
		{"-1", 0, false},
		{now.Add(time.Minute).Format(http.TimeFormat), time.Minute, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, false},
		{"soon", 0, false},
	}
	for _, tc := range cases {
		got, ok := retryAfter(tc.value, now)
		assert.Equal(t, tc.ok, ok, tc.value)
		assert.Equal(t, tc.want, got, tc.value)
	}
}

func TestWrapHTTPBlocksOverBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := WrapHTTP(Limit{Provider: "neato", PerMinute: 1}, nil, time.Second)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get(srv.URL)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "neato", rle.Provider)
	assert.Equal(t, ReasonBudget, rle.Reason)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWrapHTTPRecordsRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, _ := testGuard(Limit{Provider: "neato"})
	client := wrap(g, nil, time.Second)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	_, err = client.Get(srv.URL)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, ReasonCooldown, rle.Reason)
}

func TestWrapHTTPKeepsBaseClient(t *testing.T) {
	base := &http.Client{Timeout: 3 * time.Second}
	client := WrapHTTP(Limit{Provider: "neato", PerMinute: 5}, base, time.Second)

	assert.Equal(t, 3*time.Second, client.Timeout)
	assert.Nil(t, base.Transport)
}
