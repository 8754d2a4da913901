package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UsageRepository persists outbound-call usage events. It implements
// connector.UsageCounter.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository creates a repository for usage events.
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Record inserts one usage event for a successful outbound call.
func (r *UsageRepository) Record(ctx context.Context, connectorID, operation string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_events (connector_id, operation, occurred_at)
		VALUES ($1, $2, $3)
	`, connectorID, operation, at)
	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// CountSince counts a connector's usage events at or after the given time.
func (r *UsageRepository) CountSince(ctx context.Context, connectorID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_events
		WHERE connector_id = $1 AND occurred_at >= $2
	`, connectorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// Prune deletes events older than the retention cutoff. Usage counting
// only ever looks back a day, so anything older is dead weight.
func (r *UsageRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM usage_events WHERE occurred_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
