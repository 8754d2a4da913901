package models

import "time"

// UsageEvent records one successful outbound provider call. Hour and day
// usage counts are derived from these rows.
type UsageEvent struct {
	ID          int64     `json:"id"`
	ConnectorID string    `json:"connector_id"`
	Operation   string    `json:"operation"`
	OccurredAt  time.Time `json:"occurred_at"`
}
