package connector

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"log/slog"

	"github.com/google/uuid"

	"github.com/hearkenhq/hearken/internal/models"
)

// CredentialVault is the slice of the vault service the registry needs.
type CredentialVault interface {
	StoreConnectorCredentials(ctx context.Context, connectorID string, fields map[string]string) (map[string]string, error)
	GetConnectorCredentials(ctx context.Context, refs map[string]string) (map[string]string, error)
	UpdateConnectorCredentials(ctx context.Context, connectorID string, fields, existing map[string]string) (map[string]string, error)
	DeleteConnectorCredentials(ctx context.Context, refs map[string]string) error
}

// ConfigStore persists connector configurations.
type ConfigStore interface {
	Create(ctx context.Context, cfg *models.ConnectorConfig) error
	Get(ctx context.Context, id string) (*models.ConnectorConfig, error)
	List(ctx context.Context, organizationID string) ([]models.ConnectorConfig, error)
	Update(ctx context.Context, cfg *models.ConnectorConfig) error
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, lastError string) error
}

// Deps carries the shared infrastructure handed to every provider factory.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Usage      UsageCounter
	Metrics    Observer
}

// Factory builds a concrete connector from its persisted config and
// decrypted credentials.
type Factory func(cfg *models.ConnectorConfig, creds map[string]string, deps Deps) (Connector, error)

// Registry maps persisted provider types to factories and assembles
// connectors on demand, decrypting credentials through the vault.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.ProviderType]Factory

	store ConfigStore
	vault CredentialVault
	deps  Deps
}

// NewRegistry constructs an empty registry.
func NewRegistry(store ConfigStore, credentialVault CredentialVault, deps Deps) *Registry {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return &Registry{
		factories: make(map[models.ProviderType]Factory),
		store:     store,
		vault:     credentialVault,
		deps:      deps,
	}
}

// Register installs the factory for a provider type.
func (r *Registry) Register(provider models.ProviderType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

func (r *Registry) factory(provider models.ProviderType) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[provider]
	if !ok {
		return nil, &ConfigurationError{Field: "provider", Reason: fmt.Sprintf("unknown provider type %q", provider)}
	}
	return factory, nil
}

// Create persists a new connector config and vaults its credentials. A
// vault failure rolls the config back rather than leaving one with
// unusable credentials.
func (r *Registry) Create(ctx context.Context, cfg *models.ConnectorConfig, credentialFields map[string]string) (*models.ConnectorConfig, error) {
	if _, err := r.factory(cfg.Provider); err != nil {
		return nil, err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.CredentialRefs = map[string]string{}

	if err := r.store.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create connector config: %w", err)
	}

	refs, err := r.vault.StoreConnectorCredentials(ctx, cfg.ID, credentialFields)
	if err != nil {
		if delErr := r.store.Delete(ctx, cfg.ID); delErr != nil {
			r.deps.Logger.Error("failed to roll back connector config after vault failure",
				"connector_id", cfg.ID,
				"error", delErr)
		}
		return nil, fmt.Errorf("store connector credentials: %w", err)
	}

	cfg.CredentialRefs = refs
	if err := r.store.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("persist credential refs: %w", err)
	}

	return cfg, nil
}

// Load instantiates the connector for a persisted config, decrypting its
// credentials on demand.
func (r *Registry) Load(ctx context.Context, connectorID string) (Connector, error) {
	cfg, err := r.store.Get(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("load connector config: %w", err)
	}

	factory, err := r.factory(cfg.Provider)
	if err != nil {
		return nil, err
	}

	creds, err := r.vault.GetConnectorCredentials(ctx, cfg.CredentialRefs)
	if err != nil {
		return nil, fmt.Errorf("decrypt connector credentials: %w", err)
	}

	return factory(cfg, creds, r.deps)
}

// UpdateCredentials reconciles a connector's credentials with new field
// values and persists the updated vault mapping.
func (r *Registry) UpdateCredentials(ctx context.Context, connectorID string, fields map[string]string) (*models.ConnectorConfig, error) {
	cfg, err := r.store.Get(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("load connector config: %w", err)
	}

	refs, err := r.vault.UpdateConnectorCredentials(ctx, connectorID, fields, cfg.CredentialRefs)
	if err != nil {
		return nil, fmt.Errorf("update connector credentials: %w", err)
	}

	cfg.CredentialRefs = refs
	if err := r.store.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("persist credential refs: %w", err)
	}

	return cfg, nil
}

// Delete removes a connector and its secrets. Secret deletion is best
// effort: a partial vault failure is logged and does not block the delete.
func (r *Registry) Delete(ctx context.Context, connectorID string) error {
	cfg, err := r.store.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("load connector config: %w", err)
	}

	if err := r.vault.DeleteConnectorCredentials(ctx, cfg.CredentialRefs); err != nil {
		r.deps.Logger.Warn("failed to delete some connector secrets",
			"connector_id", connectorID,
			"error", err)
	}

	if err := r.store.Delete(ctx, connectorID); err != nil {
		return fmt.Errorf("delete connector config: %w", err)
	}

	return nil
}
