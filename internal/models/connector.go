package models

import "time"

// ProviderType identifies the external platform a connector talks to.
type ProviderType string

const (
	ProviderTwitter ProviderType = "twitter"
	ProviderReddit  ProviderType = "reddit"
)

// ConnectorCategory describes what a connector is used for.
type ConnectorCategory string

const (
	CategoryPosting   ConnectorCategory = "posting"
	CategoryListening ConnectorCategory = "listening"
)

// RateCeilings holds per-connector outbound call limits. Zero values mean
// "use the provider default".
type RateCeilings struct {
	PerHour int `json:"per_hour"`
	PerDay  int `json:"per_day"`
}

// ConnectorConfig is the persisted configuration of one connector instance.
// Credential values are never stored here: CredentialRefs maps each
// credential field name to the vault secret id holding its encrypted value.
type ConnectorConfig struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Provider       ProviderType      `json:"provider"`
	Category       ConnectorCategory `json:"category"`
	Name           string            `json:"name"`
	Config         map[string]string `json:"config"`          // Non-sensitive provider settings
	CredentialRefs map[string]string `json:"credential_refs"` // Credential field -> vault secret id
	Active         bool              `json:"active"`
	LastUsedAt     *time.Time        `json:"last_used_at,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	RateCeilings   RateCeilings      `json:"rate_ceilings"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CreatedAt      time.Time         `json:"created_at"`
}
