package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hearkenhq/hearken/internal/connector"
)

// Media larger than this is rejected before upload; matches the provider's
// image ceiling.
const maxMediaBytes = 5 * 1024 * 1024

// uploadMedia downloads each URL fully into memory and re-uploads it to
// the provider's media endpoint, returning the provider media ids. Any
// single failure aborts the whole post.
func (c *Connector) uploadMedia(ctx context.Context, mediaURLs []string) ([]string, error) {
	if len(mediaURLs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		data, err := c.downloadMedia(ctx, mediaURL)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", mediaURL, err)
		}

		id, err := c.uploadToProvider(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", mediaURL, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (c *Connector) downloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, &connector.TransportError{Err: err}
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media exceeds %d byte limit", maxMediaBytes)
	}

	return data, nil
}

func (c *Connector) uploadToProvider(ctx context.Context, data []byte) (string, error) {
	endpoint := c.uploadBase + "/1.1/media/upload.json"
	form := url.Values{"media_data": {base64.StdEncoding.EncodeToString(data)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Form-encoded bodies participate in the OAuth 1.0a signature.
	req.Header.Set("Authorization", c.signer.AuthorizationHeader(http.MethodPost, endpoint, map[string]string{
		"media_data": form.Get("media_data"),
	}))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &connector.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.tracker.UpdateFromResponse(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.classifyStatus(resp, nil)
	}

	var parsed struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if parsed.MediaIDString == "" {
		return "", &connector.ProviderAPIError{Provider: "twitter", StatusCode: resp.StatusCode, Message: "upload response missing media id"}
	}

	return parsed.MediaIDString, nil
}
