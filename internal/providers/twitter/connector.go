// Package twitter implements the posting connector for the Twitter/X API
// v2 with OAuth 1.0a request signing.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/hearkenhq/hearken/internal/connector"
	"github.com/hearkenhq/hearken/internal/models"
	"github.com/hearkenhq/hearken/internal/oauth1"
)

const (
	defaultAPIBase    = "https://api.twitter.com"
	defaultUploadBase = "https://upload.twitter.com"

	// Short pause between thread chunks to reduce secondary rate-limit risk.
	defaultPostDelay = 2 * time.Second
)

// Credential field names expected in the vaulted field map.
const (
	fieldAPIKey            = "api_key"
	fieldAPISecret         = "api_secret"
	fieldAccessToken       = "access_token"
	fieldAccessTokenSecret = "access_token_secret"
	fieldBearerToken       = "bearer_token" // optional, used for read-only probes
)

var requiredFields = []string{fieldAPIKey, fieldAPISecret, fieldAccessToken, fieldAccessTokenSecret}

// Connector posts content to Twitter, chunking long text into reply-chain
// threads. It implements connector.Poster.
type Connector struct {
	cfg     *models.ConnectorConfig
	signer  *oauth1.Signer
	bearer  string
	client  *http.Client
	tracker *connector.UsageTracker
	exec    *connector.Executor
	logger  *slog.Logger

	apiBase    string
	uploadBase string
	chunkLimit int
	postDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Factory is the registry constructor for Twitter connectors.
func Factory(cfg *models.ConnectorConfig, creds map[string]string, deps connector.Deps) (connector.Connector, error) {
	return New(cfg, creds, deps)
}

// New builds a Twitter connector from config and decrypted credentials.
func New(cfg *models.ConnectorConfig, creds map[string]string, deps connector.Deps) (*Connector, error) {
	for _, field := range requiredFields {
		if creds[field] == "" {
			return nil, &connector.ConfigurationError{Field: field, Reason: "missing credential"}
		}
	}

	signer, err := oauth1.NewSigner(oauth1.Credentials{
		ConsumerKey:    creds[fieldAPIKey],
		ConsumerSecret: creds[fieldAPISecret],
		AccessToken:    creds[fieldAccessToken],
		TokenSecret:    creds[fieldAccessTokenSecret],
	})
	if err != nil {
		return nil, &connector.ConfigurationError{Reason: err.Error()}
	}

	usage := deps.Usage
	if usage == nil {
		usage = connector.NewMemoryCounter()
	}

	chunkLimit := connector.DefaultChunkLimit
	if v := cfg.Config["chunk_limit"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			chunkLimit = n
		}
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Connector{
		cfg:    cfg,
		signer: signer,
		bearer: creds[fieldBearerToken],
		client: client,
		tracker: connector.NewUsageTracker(cfg.ID, cfg.RateCeilings, usage, connector.RateLimitHeaders{
			Remaining: "x-rate-limit-remaining",
			Reset:     "x-rate-limit-reset",
		}),
		exec:       connector.NewExecutor(connector.DefaultRetryPolicy(), deps.Logger).WithObserver("twitter", deps.Metrics),
		logger:     deps.Logger,
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		chunkLimit: chunkLimit,
		postDelay:  defaultPostDelay,
		sleep:      sleepCtx,
	}, nil
}

// Name returns the configured connector name.
func (c *Connector) Name() string { return c.cfg.Name }

// Provider identifies the platform.
func (c *Connector) Provider() models.ProviderType { return models.ProviderTwitter }

// ValidateConfig checks the credential field map for completeness.
func (c *Connector) ValidateConfig(fields map[string]string) models.ValidationResult {
	return ValidateFields(fields)
}

// ValidateFields checks a Twitter credential field map without an instance.
func ValidateFields(fields map[string]string) models.ValidationResult {
	var errs []string
	for _, field := range requiredFields {
		if fields[field] == "" {
			errs = append(errs, fmt.Sprintf("%s is required", field))
		}
	}
	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// TestConnection probes /2/users/me with the configured credentials.
func (c *Connector) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/2/users/me", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	} else {
		req.Header.Set("Authorization", c.signer.AuthorizationHeader(http.MethodGet, c.apiBase+"/2/users/me", nil))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK {
		return c.classifyStatus(resp, nil)
	}
	return nil
}

// Status derives the connector's operational state.
func (c *Connector) Status(ctx context.Context) connector.Status {
	return connector.ResolveStatus(ctx, c.cfg.Active, c.tracker, c.TestConnection)
}

// Post publishes content as a single tweet or a reply-chain thread. Chunk 1
// carries any attached media; each later chunk replies to the one before.
// A mid-chain failure is reported with the already-published chunk ids in
// the result metadata; no cleanup of published chunks is attempted.
func (c *Connector) Post(ctx context.Context, params models.PostParams) models.ConnectorResult {
	chunks := connector.SplitContent(params.Content, c.chunkLimit)
	if len(chunks) == 0 {
		return failure("content is empty", nil)
	}

	mediaIDs, err := c.uploadMedia(ctx, params.MediaURLs)
	if err != nil {
		c.logger.Error("media upload failed", "connector_id", c.cfg.ID, "error", err)
		return failure(fmt.Sprintf("media upload failed: %v", err), nil)
	}

	var posted []string
	prev := params.InReplyTo

	for i, chunk := range chunks {
		var attach []string
		if i == 0 {
			attach = mediaIDs
		}

		id, err := c.postChunk(ctx, chunk, attach, prev)
		if err != nil {
			c.logger.Error("thread chunk failed",
				"connector_id", c.cfg.ID,
				"chunk", i+1,
				"posted", len(posted),
				"error", err)
			return failure(err.Error(), posted)
		}

		posted = append(posted, id)
		prev = id

		if i < len(chunks)-1 {
			if err := c.sleep(ctx, c.postDelay); err != nil {
				return failure(fmt.Sprintf("thread interrupted: %v", err), posted)
			}
		}
	}

	return models.ConnectorResult{
		Success:    true,
		ExternalID: posted[0],
		Metadata: map[string]string{
			"thread_ids": strings.Join(posted, ","),
			"chunks":     strconv.Itoa(len(posted)),
		},
	}
}

func (c *Connector) postChunk(ctx context.Context, text string, mediaIDs []string, inReplyTo string) (string, error) {
	ok, err := c.tracker.CanExecute(ctx)
	if err != nil {
		return "", fmt.Errorf("usage check: %w", err)
	}
	if !ok {
		return "", &connector.RateLimitError{Provider: "twitter", Internal: true, ResetAt: c.tracker.ProviderResetAt()}
	}
	if err := c.tracker.Wait(ctx); err != nil {
		return "", err
	}

	var tweetID string
	err = c.exec.Do(ctx, "post_tweet", func() error {
		id, err := c.createTweet(ctx, text, mediaIDs, inReplyTo)
		if err != nil {
			return err
		}
		tweetID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := c.tracker.Record(ctx, "post"); err != nil {
		c.logger.Warn("failed to record usage event", "connector_id", c.cfg.ID, "error", err)
	}

	return tweetID, nil
}

type tweetRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (c *Connector) createTweet(ctx context.Context, text string, mediaIDs []string, inReplyTo string) (string, error) {
	tweet := tweetRequest{Text: text}
	if inReplyTo != "" {
		tweet.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: inReplyTo}
	}
	if len(mediaIDs) > 0 {
		tweet.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(tweet)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tweet: %w", err)
	}

	endpoint := c.apiBase + "/2/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// JSON bodies do not participate in the OAuth 1.0a signature.
	req.Header.Set("Authorization", c.signer.AuthorizationHeader(http.MethodPost, endpoint, nil))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &connector.TransportError{Err: err}
	}

	var parsed tweetResponse
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		json.Unmarshal(respBody, &parsed)
		return "", c.classifyStatus(resp, &parsed)
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse tweet response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", &connector.ProviderAPIError{Provider: "twitter", StatusCode: resp.StatusCode, Message: "response missing tweet id"}
	}

	return parsed.Data.ID, nil
}

// classifyStatus maps an error response onto the connector error taxonomy.
func (c *Connector) classifyStatus(resp *http.Response, parsed *tweetResponse) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &connector.RateLimitError{Provider: "twitter", ResetAt: c.tracker.ProviderResetAt()}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &connector.AuthenticationError{Provider: "twitter", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	message := ""
	if parsed != nil {
		if len(parsed.Errors) > 0 {
			message = parsed.Errors[0].Message
		} else if parsed.Detail != "" {
			message = parsed.Detail
		}
	}
	return &connector.ProviderAPIError{Provider: "twitter", StatusCode: resp.StatusCode, Message: message}
}

// GetEngagement fetches public metrics for a published tweet.
func (c *Connector) GetEngagement(ctx context.Context, externalID string) (*models.EngagementMetrics, error) {
	endpoint := c.apiBase + "/2/tweets/" + externalID
	params := map[string]string{"tweet.fields": "public_metrics"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?tweet.fields=public_metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.signer.AuthorizationHeader(http.MethodGet, endpoint, params))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(resp, nil)
	}

	var parsed struct {
		Data struct {
			PublicMetrics struct {
				RetweetCount    int `json:"retweet_count"`
				ReplyCount      int `json:"reply_count"`
				LikeCount       int `json:"like_count"`
				QuoteCount      int `json:"quote_count"`
				ImpressionCount int `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse engagement response: %w", err)
	}

	m := parsed.Data.PublicMetrics
	impressions := m.ImpressionCount
	return &models.EngagementMetrics{
		Likes:       m.LikeCount,
		Replies:     m.ReplyCount,
		Shares:      m.RetweetCount + m.QuoteCount,
		Impressions: &impressions,
	}, nil
}

func failure(message string, posted []string) models.ConnectorResult {
	result := models.ConnectorResult{Success: false, Error: message}
	if len(posted) > 0 {
		result.Metadata = map[string]string{
			"thread_ids":    strings.Join(posted, ","),
			"posted_chunks": strconv.Itoa(len(posted)),
		}
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
