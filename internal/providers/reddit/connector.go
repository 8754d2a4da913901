// Package reddit implements the search/listening connector for the reddit
// API, covering both post and comment discovery.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/hearkenhq/hearken/internal/connector"
	"github.com/hearkenhq/hearken/internal/models"
)

const (
	defaultAuthBase = "https://www.reddit.com"
	defaultAPIBase  = "https://oauth.reddit.com"

	defaultPageSize  = 25
	defaultUserAgent = "hearken/1.0"
)

// Credential and config field names. client_id and username are not
// sensitive by the vault's classification and live in the plain config.
const (
	fieldClientID     = "client_id"
	fieldClientSecret = "client_secret"
	fieldUsername     = "username"
	fieldPassword     = "password"
)

// searchKind is one searchable content kind; reddit exposes posts (t3)
// and comments (t1) as separate sub-searches.
type searchKind struct {
	name   string
	filter string
}

var searchKinds = []searchKind{
	{name: "link", filter: "link"},
	{name: "comment", filter: "comment"},
}

// Connector discovers conversations on reddit. It implements
// connector.Searcher.
type Connector struct {
	cfg     *models.ConnectorConfig
	creds   map[string]string
	client  *http.Client
	tracker *connector.UsageTracker
	exec    *connector.Executor
	logger  *slog.Logger

	authBase  string
	apiBase   string
	userAgent string

	// Token from the password grant, cached until shortly before expiry.
	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	now func() time.Time
}

// Factory is the registry constructor for reddit connectors.
func Factory(cfg *models.ConnectorConfig, creds map[string]string, deps connector.Deps) (connector.Connector, error) {
	return New(cfg, creds, deps)
}

// New builds a reddit connector from config and decrypted credentials.
func New(cfg *models.ConnectorConfig, creds map[string]string, deps connector.Deps) (*Connector, error) {
	merged := mergedFields(cfg, creds)
	if result := ValidateFields(merged); !result.Valid {
		return nil, &connector.ConfigurationError{Reason: strings.Join(result.Errors, "; ")}
	}

	usage := deps.Usage
	if usage == nil {
		usage = connector.NewMemoryCounter()
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	userAgent := cfg.Config["user_agent"]
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Connector{
		cfg:    cfg,
		creds:  merged,
		client: client,
		tracker: connector.NewUsageTracker(cfg.ID, cfg.RateCeilings, usage, connector.RateLimitHeaders{
			Remaining:    "x-ratelimit-remaining",
			Reset:        "x-ratelimit-reset",
			ResetIsDelta: true,
		}),
		exec:      connector.NewExecutor(connector.DefaultRetryPolicy(), deps.Logger).WithObserver("reddit", deps.Metrics),
		logger:    deps.Logger,
		authBase:  defaultAuthBase,
		apiBase:   defaultAPIBase,
		userAgent: userAgent,
		now:       time.Now,
	}, nil
}

func mergedFields(cfg *models.ConnectorConfig, creds map[string]string) map[string]string {
	merged := make(map[string]string, len(cfg.Config)+len(creds))
	for k, v := range cfg.Config {
		merged[k] = v
	}
	for k, v := range creds {
		merged[k] = v
	}
	return merged
}

// Name returns the configured connector name.
func (c *Connector) Name() string { return c.cfg.Name }

// Provider identifies the platform.
func (c *Connector) Provider() models.ProviderType { return models.ProviderReddit }

// ValidateConfig checks the combined config/credential field map.
func (c *Connector) ValidateConfig(fields map[string]string) models.ValidationResult {
	return ValidateFields(fields)
}

// ValidateFields checks a reddit field map without an instance.
func ValidateFields(fields map[string]string) models.ValidationResult {
	var errs []string
	for _, field := range []string{fieldClientID, fieldClientSecret, fieldUsername, fieldPassword} {
		if fields[field] == "" {
			errs = append(errs, fmt.Sprintf("%s is required", field))
		}
	}
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// TestConnection acquires a token and probes /api/v1/me.
func (c *Connector) TestConnection(ctx context.Context) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/api/v1/me", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp.StatusCode, "")
	}
	return nil
}

// Status derives the connector's operational state.
func (c *Connector) Status(ctx context.Context) connector.Status {
	return connector.ResolveStatus(ctx, c.cfg.Active, c.tracker, c.TestConnection)
}

// Search runs one page of the keyword search across both content kinds,
// sequentially, concatenating normalized results. HasMore is true when any
// sub-search returned a continuation token.
func (c *Connector) Search(ctx context.Context, query models.SearchQuery, cursorToken string) (*models.SearchResult, error) {
	cur, err := decodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}

	q := BuildQuery(query)
	if q == "" {
		return nil, &connector.ConfigurationError{Field: "keywords", Reason: "at least one keyword is required"}
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := &models.SearchResult{}
	var next cursor

	for _, kind := range searchKinds {
		after := cur.Link
		if kind.name == "comment" {
			after = cur.Comment
		}

		// A sub-search past its last page stays exhausted; only the first
		// page (no cursor at all) runs every kind fresh.
		if cursorToken != "" && after == "" {
			continue
		}

		listing, err := c.searchKind(ctx, q, kind, pageSize, after)
		if err != nil {
			return nil, fmt.Errorf("%s search: %w", kind.name, err)
		}

		for _, child := range listing.Data.Children {
			conv := c.normalize(child)
			if query.Since != nil && conv.PublishedAt.Before(*query.Since) {
				continue
			}
			if query.Until != nil && conv.PublishedAt.After(*query.Until) {
				continue
			}
			result.Conversations = append(result.Conversations, conv)
		}

		if kind.name == "comment" {
			next.Comment = listing.Data.After
		} else {
			next.Link = listing.Data.After
		}
	}

	result.NextCursor = encodeCursor(next)
	result.HasMore = !next.empty()
	return result, nil
}

// GetConversation fetches a single post or comment by its fullname id.
// Returns (nil, nil) when the id does not exist.
func (c *Connector) GetConversation(ctx context.Context, externalID string) (*models.DiscoveredConversation, error) {
	params := url.Values{"id": {externalID}, "raw_json": {"1"}}

	listing, err := c.listing(ctx, "/api/info", params)
	if err != nil {
		return nil, err
	}
	if len(listing.Data.Children) == 0 {
		return nil, nil
	}

	conv := c.normalize(listing.Data.Children[0])
	return &conv, nil
}

func (c *Connector) searchKind(ctx context.Context, q string, kind searchKind, pageSize int, after string) (*listingResponse, error) {
	params := url.Values{
		"q":        {q},
		"type":     {kind.filter},
		"sort":     {"new"},
		"limit":    {strconv.Itoa(pageSize)},
		"raw_json": {"1"},
	}
	if after != "" {
		params.Set("after", after)
	}

	return c.listing(ctx, "/search", params)
}

// listing performs one gated, retried GET returning a reddit listing.
func (c *Connector) listing(ctx context.Context, path string, params url.Values) (*listingResponse, error) {
	ok, err := c.tracker.CanExecute(ctx)
	if err != nil {
		return nil, fmt.Errorf("usage check: %w", err)
	}
	if !ok {
		return nil, &connector.RateLimitError{Provider: "reddit", Internal: true, ResetAt: c.tracker.ProviderResetAt()}
	}
	if err := c.tracker.Wait(ctx); err != nil {
		return nil, err
	}

	var listing *listingResponse
	err = c.exec.Do(ctx, "search", func() error {
		l, err := c.fetchListing(ctx, path, params)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.tracker.Record(ctx, "search"); err != nil {
		c.logger.Warn("failed to record usage event", "connector_id", c.cfg.ID, "error", err)
	}

	return listing, nil
}

type listingResponse struct {
	Data struct {
		After    string         `json:"after"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string      `json:"kind"`
	Data listingItem `json:"data"`
}

type listingItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"` // fullname, e.g. t3_abc
	Author     string  `json:"author"`
	AuthorID   string  `json:"author_fullname"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Body       string  `json:"body"` // comments only
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	LinkID     string  `json:"link_id"` // comments: parent post fullname
	LinkTitle  string  `json:"link_title"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

func (c *Connector) fetchListing(ctx context.Context, path string, params url.Values) (*listingResponse, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.classifyStatus(resp.StatusCode, parseErrorMessage(body))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	return &listing, nil
}

// normalize maps one listing child onto the canonical conversation shape.
func (c *Connector) normalize(child listingChild) models.DiscoveredConversation {
	item := child.Data

	content := item.Body
	if child.Kind == "t3" {
		content = item.Title
		if item.Selftext != "" {
			content += "\n\n" + item.Selftext
		}
	}

	conv := models.DiscoveredConversation{
		Platform:     models.ProviderReddit,
		ExternalID:   item.Name,
		URL:          "https://www.reddit.com" + item.Permalink,
		Author:       item.Author,
		AuthorID:     item.AuthorID,
		Content:      content,
		PublishedAt:  time.Unix(int64(item.CreatedUTC), 0).UTC(),
		DiscoveredAt: c.now().UTC(),
		Metadata: map[string]string{
			"subreddit": item.Subreddit,
			"kind":      child.Kind,
			"score":     strconv.Itoa(item.Score),
		},
	}

	if child.Kind == "t1" {
		conv.ParentID = item.LinkID
		conv.ParentContent = item.LinkTitle
	}

	return conv
}

func (c *Connector) decorate(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
}

func (c *Connector) classifyStatus(status int, message string) error {
	switch status {
	case http.StatusTooManyRequests:
		return &connector.RateLimitError{Provider: "reddit", ResetAt: c.tracker.ProviderResetAt()}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &connector.AuthenticationError{Provider: "reddit", Err: fmt.Errorf("status %d", status)}
	}
	return &connector.ProviderAPIError{Provider: "reddit", StatusCode: status, Message: message}
}

func parseErrorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Message
}

// token returns the cached password-grant token, refreshing it when it is
// within a minute of expiry.
func (c *Connector) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds[fieldUsername]},
		"password":   {c.creds[fieldPassword]},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.creds[fieldClientID], c.creds[fieldClientSecret])

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &connector.AuthenticationError{Provider: "reddit", Err: fmt.Errorf("token endpoint status %d", resp.StatusCode)}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", &connector.AuthenticationError{Provider: "reddit", Err: fmt.Errorf("empty access token")}
	}

	c.accessToken = parsed.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
