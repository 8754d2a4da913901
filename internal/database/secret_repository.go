package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hearkenhq/hearken/internal/models"
)

// SecretRepository persists encrypted vault secrets. It implements
// vault.SecretStore: Get and GetBatch treat unknown ids as absent rows,
// not errors.
type SecretRepository struct {
	db *sql.DB
}

// NewSecretRepository creates a repository for vault secrets.
func NewSecretRepository(db *sql.DB) *SecretRepository {
	return &SecretRepository{db: db}
}

// Insert stores a new encrypted secret.
func (r *SecretRepository) Insert(ctx context.Context, secret *models.VaultSecret) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vault_secrets (id, name, description, ciphertext, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, secret.ID, secret.Name, secret.Description, secret.Ciphertext, secret.UpdatedAt, secret.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert secret: %w", err)
	}
	return nil
}

// Get retrieves one secret, or (nil, nil) when the id is unknown.
func (r *SecretRepository) Get(ctx context.Context, id string) (*models.VaultSecret, error) {
	secret := &models.VaultSecret{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, ciphertext, updated_at, created_at
		FROM vault_secrets
		WHERE id = $1
	`, id).Scan(&secret.ID, &secret.Name, &secret.Description, &secret.Ciphertext, &secret.UpdatedAt, &secret.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	return secret, nil
}

// GetBatch retrieves every existing secret among ids in one round trip.
func (r *SecretRepository) GetBatch(ctx context.Context, ids []string) ([]models.VaultSecret, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, ciphertext, updated_at, created_at
		FROM vault_secrets
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}
	defer rows.Close()

	var secrets []models.VaultSecret
	for rows.Next() {
		var secret models.VaultSecret
		if err := rows.Scan(&secret.ID, &secret.Name, &secret.Description, &secret.Ciphertext, &secret.UpdatedAt, &secret.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	return secrets, rows.Err()
}

// Update rotates a secret's ciphertext in place.
func (r *SecretRepository) Update(ctx context.Context, id string, ciphertext []byte) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE vault_secrets SET ciphertext = $1, updated_at = $2 WHERE id = $3
	`, ciphertext, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("secret not found: %s", id)
	}

	return nil
}

// Delete removes a secret permanently.
func (r *SecretRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM vault_secrets WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
