package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/hearkenhq/hearken/internal/connector"
	"github.com/hearkenhq/hearken/internal/models"
)

func testCreds() map[string]string {
	return map[string]string{
		fieldAPIKey:            "ck",
		fieldAPISecret:         "cs",
		fieldAccessToken:       "at",
		fieldAccessTokenSecret: "ts",
	}
}

func newTestConnector(t *testing.T, server *httptest.Server) *Connector {
	t.Helper()

	cfg := &models.ConnectorConfig{
		ID:       "conn-1",
		Name:     "test twitter",
		Provider: models.ProviderTwitter,
		Active:   true,
		Config:   map[string]string{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(cfg, testCreds(), connector.Deps{
		Logger:     logger,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.apiBase = server.URL
	c.uploadBase = server.URL
	c.postDelay = time.Millisecond
	c.exec = connector.NewExecutor(connector.RetryPolicy{
		MaxRetries:       3,
		RetryDelay:       time.Millisecond,
		TransportBackoff: time.Millisecond,
	}, logger)
	return c
}

type capturedTweet struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media"`
}

func tweetServer(t *testing.T, captured *[]capturedTweet) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Error("request not OAuth-signed")
		}

		var tweet capturedTweet
		if err := json.NewDecoder(r.Body).Decode(&tweet); err != nil {
			t.Errorf("bad tweet body: %v", err)
		}
		*captured = append(*captured, tweet)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"tweet-%d"}}`, len(*captured))
	}))
}

func TestPost_SingleChunk(t *testing.T) {
	var captured []capturedTweet
	server := tweetServer(t, &captured)
	defer server.Close()

	c := newTestConnector(t, server)
	result := c.Post(context.Background(), models.PostParams{Content: "a short update"})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.ExternalID != "tweet-1" {
		t.Errorf("ExternalID = %q, want tweet-1", result.ExternalID)
	}
	if len(captured) != 1 {
		t.Fatalf("expected 1 tweet, got %d", len(captured))
	}
	if captured[0].Reply != nil {
		t.Error("single post should not be a reply")
	}
}

func TestPost_LongContentBecomesThread(t *testing.T) {
	var captured []capturedTweet
	server := tweetServer(t, &captured)
	defer server.Close()

	c := newTestConnector(t, server)

	content := strings.TrimSpace(strings.Repeat("update word ", 60)) // ~720 chars
	result := c.Post(context.Background(), models.PostParams{Content: content})

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(captured) < 2 {
		t.Fatalf("expected a thread, got %d tweets", len(captured))
	}

	// The whole chain hangs off the first chunk by reply chaining.
	if captured[0].Reply != nil {
		t.Error("first chunk should not be a reply")
	}
	for i := 1; i < len(captured); i++ {
		if captured[i].Reply == nil {
			t.Fatalf("chunk %d is not a reply", i+1)
		}
		want := fmt.Sprintf("tweet-%d", i)
		if captured[i].Reply.InReplyToTweetID != want {
			t.Errorf("chunk %d replies to %q, want %q", i+1, captured[i].Reply.InReplyToTweetID, want)
		}
	}

	if result.Metadata["chunks"] == "" || result.Metadata["thread_ids"] == "" {
		t.Errorf("thread metadata missing: %v", result.Metadata)
	}
}

func TestPost_TwoRateLimitsThenSuccess(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"tweet-ok"}}`)
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	result := c.Post(context.Background(), models.PostParams{Content: "retry me"})

	if !result.Success {
		t.Fatalf("expected success after retries, got %q", result.Error)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (2 retries), got %d", attempts)
	}
}

func TestPost_MidChainFailureReportsPostedChunks(t *testing.T) {
	posts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		if posts >= 2 {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"duplicate content"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"tweet-%d"}}`, posts)
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	content := strings.TrimSpace(strings.Repeat("word ", 120)) // forces >1 chunk

	result := c.Post(context.Background(), models.PostParams{Content: content})

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "duplicate content") {
		t.Errorf("provider message not passed through: %q", result.Error)
	}
	// Published chunks are reported, not retracted.
	if result.Metadata["posted_chunks"] != "1" {
		t.Errorf("posted_chunks = %q, want 1", result.Metadata["posted_chunks"])
	}
}

func TestPost_MediaAttachedToFirstChunk(t *testing.T) {
	var captured []capturedTweet
	uploads := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.png":
			w.Write([]byte("png-bytes"))
		case "/1.1/media/upload.json":
			uploads++
			if err := r.ParseForm(); err != nil || r.PostForm.Get("media_data") == "" {
				t.Error("upload missing media_data")
			}
			io.WriteString(w, `{"media_id_string":"media-1"}`)
		case "/2/tweets":
			var tweet capturedTweet
			json.NewDecoder(r.Body).Decode(&tweet)
			captured = append(captured, tweet)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"data":{"id":"tweet-%d"}}`, len(captured))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	content := strings.TrimSpace(strings.Repeat("word ", 120))

	result := c.Post(context.Background(), models.PostParams{
		Content:   content,
		MediaURLs: []string{server.URL + "/image.png"},
	})

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if uploads != 1 {
		t.Errorf("expected 1 upload, got %d", uploads)
	}
	if captured[0].Media == nil || len(captured[0].Media.MediaIDs) != 1 {
		t.Error("media not attached to chunk 1")
	}
	for i := 1; i < len(captured); i++ {
		if captured[i].Media != nil {
			t.Errorf("chunk %d carries media, only chunk 1 should", i+1)
		}
	}
}

func TestPost_MediaDownloadFailureAbortsPost(t *testing.T) {
	posts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2/tweets" {
			posts++
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	result := c.Post(context.Background(), models.PostParams{
		Content:   "with media",
		MediaURLs: []string{server.URL + "/missing.png"},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if posts != 0 {
		t.Errorf("no tweet should be posted after media failure, got %d", posts)
	}
}

func TestGetEngagement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/2/tweets/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"data":{"public_metrics":{"retweet_count":3,"reply_count":2,"like_count":10,"quote_count":1,"impression_count":500}}}`)
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	m, err := c.GetEngagement(context.Background(), "tweet-1")
	if err != nil {
		t.Fatalf("GetEngagement: %v", err)
	}

	if m.Likes != 10 || m.Replies != 2 || m.Shares != 4 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.Impressions == nil || *m.Impressions != 500 {
		t.Errorf("impressions = %v, want 500", m.Impressions)
	}
}

func TestTestConnection_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestConnector(t, server)
	err := c.TestConnection(context.Background())

	var authErr *connector.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Errorf("expected AuthenticationError, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	creds := testCreds()
	delete(creds, fieldAccessToken)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(&models.ConnectorConfig{ID: "x"}, creds, connector.Deps{Logger: logger})

	var cfgErr *connector.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateFields(t *testing.T) {
	result := ValidateFields(map[string]string{fieldAPIKey: "k"})
	if result.Valid {
		t.Error("expected invalid")
	}
	if len(result.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	result = ValidateFields(testCreds())
	if !result.Valid {
		t.Errorf("expected valid, got %v", result.Errors)
	}
}
