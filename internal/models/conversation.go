package models

import "time"

// DiscoveredConversation is the canonical shape every search connector
// normalizes provider results into, regardless of the originating
// sub-search (posts, comments, ...).
type DiscoveredConversation struct {
	Platform      ProviderType      `json:"platform"`
	ExternalID    string            `json:"external_id"`
	URL           string            `json:"url,omitempty"`
	Author        string            `json:"author,omitempty"`
	AuthorID      string            `json:"author_id,omitempty"`
	Content       string            `json:"content"`
	ParentID      string            `json:"parent_id,omitempty"`
	ParentContent string            `json:"parent_content,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	PublishedAt   time.Time         `json:"published_at"`
	DiscoveredAt  time.Time         `json:"discovered_at"`
}

// EngagementMetrics reports interaction counts for a published item.
// Impressions is nil when the provider does not expose it.
type EngagementMetrics struct {
	Likes       int  `json:"likes"`
	Replies     int  `json:"replies"`
	Shares      int  `json:"shares"`
	Impressions *int `json:"impressions,omitempty"`
}
