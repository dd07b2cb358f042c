// Package poll periodically fetches the authority's desired state over
// HTTPS. Polling is the catch-up channel: it repairs whatever push or SMS
// missed while the device was offline.
package poll

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"device-protect/agent/internal/security"
)

const maxResponseBytes = 1 << 20

// Client fetches the device's desired-state document.
type Client struct {
	http       *http.Client
	baseURL    string
	deviceID   string
	appVersion int
	tokens     *security.TokenIssuer
}

// NewClient returns a Client against baseURL. tokens signs the per-request
// bearer credential.
func NewClient(baseURL, deviceID string, appVersion int, tokens *security.TokenIssuer, timeout time.Duration) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{
		http:       hc,
		baseURL:    baseURL,
		deviceID:   deviceID,
		appVersion: appVersion,
		tokens:     tokens,
	}
}

// Fetch performs one status request and returns the raw response document.
// Client errors (4xx) are wrapped as backoff.Permanent so retry loops stop
// immediately; transient failures return plain errors and are retried.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/status")
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("poll: bad base url: %w", err))
	}
	q := u.Query()
	q.Set("device_id", c.deviceID)
	q.Set("app_version", strconv.Itoa(c.appVersion))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	token, _, err := c.tokens.Issue(c.appVersion)
	if err != nil {
		return nil, fmt.Errorf("poll: issue token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("poll: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(fmt.Errorf("poll: authority rejected request: %s", resp.Status))
	default:
		return nil, fmt.Errorf("poll: authority returned %s", resp.Status)
	}
}
