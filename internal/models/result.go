package models

// PostParams is the input to a posting connector. Content longer than the
// provider's single-post limit is chunked into a thread by the connector.
type PostParams struct {
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
	InReplyTo string   `json:"in_reply_to,omitempty"`
}

// ConnectorResult is the outcome of a posting operation. Failures are
// reported through Success/Error rather than a raised error so the caller
// can decide task-level retry on its own.
type ConnectorResult struct {
	Success    bool              `json:"success"`
	ExternalID string            `json:"external_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ValidationResult reports config validation errors without failing hard.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
