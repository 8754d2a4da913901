package models

import "time"

// SearchQuery is the provider-independent search input. Each connector
// translates it into its provider's native query syntax.
type SearchQuery struct {
	Keywords         []string   `json:"keywords"`
	NegativeKeywords []string   `json:"negative_keywords,omitempty"`
	Since            *time.Time `json:"since,omitempty"`
	Until            *time.Time `json:"until,omitempty"`
	PageSize         int        `json:"page_size,omitempty"`
}

// SearchResult is one page of normalized search output. NextCursor is an
// opaque continuation token; HasMore is true whenever a cursor came back
// from any sub-search.
type SearchResult struct {
	Conversations []DiscoveredConversation `json:"conversations"`
	NextCursor    string                   `json:"next_cursor,omitempty"`
	HasMore       bool                     `json:"has_more"`
}
