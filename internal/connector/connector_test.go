package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/hearkenhq/hearken/internal/models"
)

func TestResolveStatus(t *testing.T) {
	ctx := context.Background()
	okProbe := func(context.Context) error { return nil }
	failProbe := func(context.Context) error { return errors.New("unreachable") }

	if got := ResolveStatus(ctx, false, nil, okProbe); got != StatusInactive {
		t.Errorf("disabled config: got %s, want %s", got, StatusInactive)
	}

	if got := ResolveStatus(ctx, true, nil, okProbe); got != StatusActive {
		t.Errorf("healthy probe: got %s, want %s", got, StatusActive)
	}

	if got := ResolveStatus(ctx, true, nil, failProbe); got != StatusError {
		t.Errorf("failing probe: got %s, want %s", got, StatusError)
	}

	// Exhausted tracker wins over the probe.
	tracker := NewUsageTracker("conn-1", models.RateCeilings{PerHour: 1, PerDay: 1}, NewMemoryCounter(), RateLimitHeaders{})
	tracker.Record(ctx, "post")
	if got := ResolveStatus(ctx, true, tracker, okProbe); got != StatusRateLimited {
		t.Errorf("exhausted tracker: got %s, want %s", got, StatusRateLimited)
	}
}
