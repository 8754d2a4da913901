// Package connector defines the uniform contract every provider
// integration implements, plus the shared rate-limit, retry and chunking
// machinery behind it.
package connector

import (
	"context"

	"github.com/hearkenhq/hearken/internal/models"
)

// Status is a connector's operational state.
type Status string

const (
	StatusInactive    Status = "inactive"
	StatusActive      Status = "active"
	StatusError       Status = "error"
	StatusRateLimited Status = "rate_limited"
)

// Connector is the operation surface shared by every provider integration.
type Connector interface {
	// Name returns the configured display name of this connector instance.
	Name() string

	// Provider returns the platform this connector talks to.
	Provider() models.ProviderType

	// TestConnection performs a lightweight authenticated probe.
	TestConnection(ctx context.Context) error

	// Status derives the current operational state; see ResolveStatus.
	Status(ctx context.Context) Status

	// ValidateConfig checks a config/credential field map for completeness
	// without performing network calls.
	ValidateConfig(fields map[string]string) models.ValidationResult
}

// Poster is the capability interface of content-posting connectors.
type Poster interface {
	Connector

	// Post publishes content, chunking it into a thread when it exceeds
	// the provider's single-post limit. Failures are reported in the
	// result rather than raised.
	Post(ctx context.Context, params models.PostParams) models.ConnectorResult

	// GetEngagement fetches interaction counts for a published item.
	GetEngagement(ctx context.Context, externalID string) (*models.EngagementMetrics, error)
}

// Searcher is the capability interface of search/listening connectors.
type Searcher interface {
	Connector

	// Search runs one page of a keyword search. cursor is the opaque
	// continuation token from a prior page, or empty for the first page.
	Search(ctx context.Context, query models.SearchQuery, cursor string) (*models.SearchResult, error)

	// GetConversation fetches a single item by its provider id. Returns
	// (nil, nil) when the item does not exist.
	GetConversation(ctx context.Context, externalID string) (*models.DiscoveredConversation, error)
}

// ResolveStatus applies the status state machine: a disabled config is
// inactive; exhausted usage with an unexpired reset is rate_limited;
// otherwise a connectivity probe decides between active and error. It is a
// pure function of the inputs plus the probe.
func ResolveStatus(ctx context.Context, active bool, tracker *UsageTracker, probe func(context.Context) error) Status {
	if !active {
		return StatusInactive
	}
	if tracker != nil && tracker.Exhausted(ctx) {
		return StatusRateLimited
	}
	if err := probe(ctx); err != nil {
		return StatusError
	}
	return StatusActive
}
