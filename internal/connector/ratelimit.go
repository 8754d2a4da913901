package connector

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hearkenhq/hearken/internal/models"
)

// Default ceilings applied when a connector config leaves them unset.
const (
	DefaultHourlyCeiling = 50
	DefaultDailyCeiling  = 300
)

// UsageCounter persists usage events and answers trailing-window counts.
// One row is recorded per successful outbound call.
type UsageCounter interface {
	Record(ctx context.Context, connectorID, operation string, at time.Time) error
	CountSince(ctx context.Context, connectorID string, since time.Time) (int, error)
}

// RateLimitHeaders names the provider's quota response headers. ResetIsDelta
// marks providers that report seconds-until-reset instead of a unix epoch.
type RateLimitHeaders struct {
	Remaining    string
	Reset        string
	ResetIsDelta bool
}

// UsageTracker gates outbound calls for one connector instance. Two
// independent checks precede every call: the internal trailing hour/day
// usage counts against configured ceilings, and the provider-reported
// remaining quota parsed from the last response's headers. State is scoped
// to the instance so concurrent connectors never interfere.
type UsageTracker struct {
	connectorID string
	hourly      int
	daily       int
	counter     UsageCounter
	headers     RateLimitHeaders
	bucket      *rate.Limiter

	mu        sync.Mutex
	remaining int // -1 until the provider reports
	resetAt   time.Time

	now func() time.Time
}

// NewUsageTracker builds a tracker for one connector, applying default
// ceilings where the config leaves them zero.
func NewUsageTracker(connectorID string, ceilings models.RateCeilings, counter UsageCounter, headers RateLimitHeaders) *UsageTracker {
	hourly := ceilings.PerHour
	if hourly <= 0 {
		hourly = DefaultHourlyCeiling
	}
	daily := ceilings.PerDay
	if daily <= 0 {
		daily = DefaultDailyCeiling
	}

	return &UsageTracker{
		connectorID: connectorID,
		hourly:      hourly,
		daily:       daily,
		counter:     counter,
		headers:     headers,
		bucket:      rate.NewLimiter(rate.Limit(float64(hourly)/3600.0), burstFor(hourly)),
		remaining:   -1,
		now:         time.Now,
	}
}

func burstFor(hourly int) int {
	burst := hourly / 10
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Wait applies the proactive token-bucket throttle.
func (t *UsageTracker) Wait(ctx context.Context) error {
	return t.bucket.Wait(ctx)
}

// CanExecute reports whether both gates currently indicate capacity.
func (t *UsageTracker) CanExecute(ctx context.Context) (bool, error) {
	now := t.now()

	hourCount, err := t.counter.CountSince(ctx, t.connectorID, now.Add(-time.Hour))
	if err != nil {
		return false, err
	}
	if hourCount >= t.hourly {
		return false, nil
	}

	dayCount, err := t.counter.CountSince(ctx, t.connectorID, now.Add(-24*time.Hour))
	if err != nil {
		return false, err
	}
	if dayCount >= t.daily {
		return false, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining == 0 && now.Before(t.resetAt) {
		return false, nil
	}

	return true, nil
}

// Exhausted reports whether the tracker is currently out of capacity with
// an unexpired reset, the condition that maps to the rate_limited status.
func (t *UsageTracker) Exhausted(ctx context.Context) bool {
	ok, err := t.CanExecute(ctx)
	return err == nil && !ok
}

// Record persists one usage event for a successful call.
func (t *UsageTracker) Record(ctx context.Context, operation string) error {
	return t.counter.Record(ctx, t.connectorID, operation, t.now())
}

// UpdateFromResponse folds the provider's quota headers into the tracker.
func (t *UsageTracker) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if v := resp.Header.Get(t.headers.Remaining); v != "" {
		// Some providers (reddit) report remaining as a float.
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t.remaining = int(f)
		}
	}

	if v := resp.Header.Get(t.headers.Reset); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			if t.headers.ResetIsDelta {
				t.resetAt = t.now().Add(time.Duration(f * float64(time.Second)))
			} else {
				t.resetAt = time.Unix(int64(f), 0)
			}
		}
	}
}

// ProviderResetAt returns the last provider-reported reset time, zero when
// the provider has not reported one.
func (t *UsageTracker) ProviderResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetAt
}

// MemoryCounter is an in-process UsageCounter for connectors without a
// persistent store and for tests.
type MemoryCounter struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryCounter returns an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{events: make(map[string][]time.Time)}
}

// Record appends an event for the connector.
func (m *MemoryCounter) Record(_ context.Context, connectorID, _ string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[connectorID] = append(m.events[connectorID], at)
	return nil
}

// CountSince counts events at or after the given time.
func (m *MemoryCounter) CountSince(_ context.Context, connectorID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, at := range m.events[connectorID] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}
