// Package meraki is a read-only client for the Meraki Dashboard API
// endpoints the activity poller needs, plus the per-network event pager.
package meraki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the v0 dashboard API root.
const DefaultBaseURL = "https://api.meraki.com/api/v0"

// APIKeyHeader carries the dashboard API key on every request.
const APIKeyHeader = "X-Cisco-Meraki-API-Key"

// maxErrorBody caps the response body kept on an APIError.
const maxErrorBody = 512

// MaxPerPage is the largest page the events endpoint serves.
const MaxPerPage = 1000

// ErrNoOrganizations is returned when the API key can see no organization.
var ErrNoOrganizations = errors.New("no organizations visible to this API key")

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Path       string
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meraki %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// Client talks to the Meraki Dashboard API with an API key header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Organizations lists the organizations the API key can access.
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.getJSON(ctx, "/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Networks lists the networks of an organization.
func (c *Client) Networks(ctx context.Context, organizationID string) ([]Network, error) {
	path := "/organizations/" + url.PathEscape(organizationID) + "/networks"

	var raw json.RawMessage
	if err := c.getJSON(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	// Some API revisions wrap the array in a JSON string.
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		raw = json.RawMessage(inner)
	}

	var networks []Network
	if err := json.Unmarshal(raw, &networks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return networks, nil
}

// Events fetches one page of a network's event log.
func (c *Client) Events(ctx context.Context, q EventsQuery) (*EventPage, error) {
	path := "/networks/" + url.PathEscape(q.NetworkID) + "/events"

	params := url.Values{}
	params.Set("productType", q.ProductType)
	if q.PerPage > 0 {
		params.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if q.StartingAfter != "" {
		params.Set("startingAfter", q.StartingAfter)
	}

	var page EventPage
	if err := c.getJSON(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Path: path, Body: truncateBody(body, maxErrorBody)}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// truncateBody returns at most limit bytes of body without splitting a rune.
func truncateBody(body []byte, limit int) string {
	if len(body) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return strings.ToValidUTF8(string(body), "\uFFFD")
}
