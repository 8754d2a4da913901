package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearkenhq/hearken/internal/models"
)

// ConnectorRepository persists connector configurations. It implements
// connector.ConfigStore. The credentials blob is never stored here; only
// the field->vault-id mapping is.
type ConnectorRepository struct {
	db *sql.DB
}

// NewConnectorRepository creates a repository for connector configs.
func NewConnectorRepository(db *sql.DB) *ConnectorRepository {
	return &ConnectorRepository{db: db}
}

const connectorColumns = `id, organization_id, provider, category, name, config, credential_refs,
	active, last_used_at, last_error, rate_per_hour, rate_per_day, updated_at, created_at`

// Create inserts a new connector config.
func (r *ConnectorRepository) Create(ctx context.Context, cfg *models.ConnectorConfig) error {
	configJSON, refsJSON, err := marshalConnectorJSON(cfg)
	if err != nil {
		return err
	}

	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO connectors (`+connectorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		cfg.ID, cfg.OrganizationID, cfg.Provider, cfg.Category, cfg.Name,
		configJSON, refsJSON, cfg.Active, cfg.LastUsedAt, cfg.LastError,
		cfg.RateCeilings.PerHour, cfg.RateCeilings.PerDay, cfg.UpdatedAt, cfg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert connector: %w", err)
	}

	return nil
}

// Get retrieves one connector config by id.
func (r *ConnectorRepository) Get(ctx context.Context, id string) (*models.ConnectorConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+connectorColumns+`
		FROM connectors
		WHERE id = $1
	`, id)

	cfg, err := scanConnector(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connector not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}

	return cfg, nil
}

// List retrieves every connector belonging to an organization.
func (r *ConnectorRepository) List(ctx context.Context, organizationID string) ([]models.ConnectorConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+connectorColumns+`
		FROM connectors
		WHERE organization_id = $1
		ORDER BY created_at
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connectors: %w", err)
	}
	defer rows.Close()

	var configs []models.ConnectorConfig
	for rows.Next() {
		cfg, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connector: %w", err)
		}
		configs = append(configs, *cfg)
	}

	return configs, rows.Err()
}

// Update rewrites a connector config in full.
func (r *ConnectorRepository) Update(ctx context.Context, cfg *models.ConnectorConfig) error {
	configJSON, refsJSON, err := marshalConnectorJSON(cfg)
	if err != nil {
		return err
	}

	cfg.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE connectors
		SET name = $1, config = $2, credential_refs = $3, active = $4,
			last_error = $5, rate_per_hour = $6, rate_per_day = $7, updated_at = $8
		WHERE id = $9
	`,
		cfg.Name, configJSON, refsJSON, cfg.Active,
		cfg.LastError, cfg.RateCeilings.PerHour, cfg.RateCeilings.PerDay, cfg.UpdatedAt,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update connector: %w", err)
	}

	return requireRow(result, cfg.ID)
}

// Delete removes a connector config.
func (r *ConnectorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM connectors WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete connector: %w", err)
	}
	return requireRow(result, id)
}

// Touch records a use of the connector: last_used_at is set to now and
// last_error to the given text (empty on success).
func (r *ConnectorRepository) Touch(ctx context.Context, id string, lastError string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE connectors
		SET last_used_at = $1, last_error = $2, updated_at = $1
		WHERE id = $3
	`, time.Now(), lastError, id)
	if err != nil {
		return fmt.Errorf("failed to touch connector: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connector not found: %s", id)
	}
	return nil
}

func marshalConnectorJSON(cfg *models.ConnectorConfig) (configJSON, refsJSON []byte, err error) {
	if cfg.Config == nil {
		cfg.Config = map[string]string{}
	}
	if cfg.CredentialRefs == nil {
		cfg.CredentialRefs = map[string]string{}
	}

	configJSON, err = json.Marshal(cfg.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	refsJSON, err = json.Marshal(cfg.CredentialRefs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal credential refs: %w", err)
	}
	return configJSON, refsJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnector(row rowScanner) (*models.ConnectorConfig, error) {
	cfg := &models.ConnectorConfig{}
	var configJSON, refsJSON []byte
	var lastUsed sql.NullTime

	err := row.Scan(
		&cfg.ID, &cfg.OrganizationID, &cfg.Provider, &cfg.Category, &cfg.Name,
		&configJSON, &refsJSON, &cfg.Active, &lastUsed, &cfg.LastError,
		&cfg.RateCeilings.PerHour, &cfg.RateCeilings.PerDay, &cfg.UpdatedAt, &cfg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		cfg.LastUsedAt = &lastUsed.Time
	}
	if err := json.Unmarshal(configJSON, &cfg.Config); err != nil {
		return nil, fmt.Errorf("failed to parse connector config: %w", err)
	}
	if err := json.Unmarshal(refsJSON, &cfg.CredentialRefs); err != nil {
		return nil, fmt.Errorf("failed to parse credential refs: %w", err)
	}

	return cfg, nil
}
