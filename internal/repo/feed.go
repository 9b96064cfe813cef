package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miradorstack/mirador-correlate/internal/models"
	"github.com/miradorstack/mirador-correlate/internal/utils"
)

// FeedClient pulls investigation batches from the upstream agent pipeline.
type FeedClient struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// NewFeedClient constructs a client targeting the configured pipeline endpoint.
func NewFeedClient(baseURL, path string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchInvestigations returns investigation records created at or after since.
func (c *FeedClient) FetchInvestigations(ctx context.Context, since time.Time) ([]models.InvestigationRecord, error) {
	if c == nil || c.baseURL == "" {
		return nil, utils.NewAppError("feed.fetch", "feed base URL not configured", nil)
	}

	endpoint, err := url.Parse(c.baseURL + c.path)
	if err != nil {
		return nil, utils.NewAppError("feed.fetch", "invalid feed endpoint", err)
	}
	query := endpoint.Query()
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, utils.NewAppError("feed.fetch", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("feed.fetch", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError("feed.fetch", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Investigations []models.InvestigationRecord `json:"investigations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, utils.NewAppError("feed.fetch", "decode response", err)
	}
	return payload.Investigations, nil
}
