// Package arpae fetches observation snapshots from the ARPAE
// meteo_osservati REST endpoint.
package arpae

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
)

// Client issues snapshot fetches against the ARPAE endpoint. It performs no
// retries; retry policy belongs to the scheduler, which simply runs the next
// cycle.
type Client struct {
	baseURL    string
	variable   string
	maxResults int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an ARPAE client filtered to stations reporting the given
// variable type.
func NewClient(baseURL, variable string, maxResults int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		variable:   variable,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch retrieves the snapshot for one YYYYMMDD date key. The query filters
// on the configured variable, projects only that date's data block plus the
// station registry, and caps the result count. Non-2xx statuses and
// malformed bodies surface as a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, dateKey string) (domain.Snapshot, error) {
	reqURL, err := c.buildURL(dateKey)
	if err != nil {
		return domain.Snapshot{}, &domain.FetchError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Snapshot{}, &domain.FetchError{Err: fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, &domain.FetchError{Err: fmt.Errorf("request snapshot: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Snapshot{}, &domain.FetchError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var snapshot domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return domain.Snapshot{}, &domain.FetchError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode snapshot: %w", err),
		}
	}

	c.logger.Debug("snapshot fetched",
		"date", dateKey,
		"stations", len(snapshot.Items),
		"duration", time.Since(start),
	)
	return snapshot, nil
}

// buildURL assembles the filtered query. The where and projection parameters
// are MongoDB-style JSON documents, matching what the upstream API expects.
func (c *Client) buildURL(dateKey string) (string, error) {
	where, err := json.Marshal(map[string]string{"anagrafica.variabili": c.variable})
	if err != nil {
		return "", fmt.Errorf("encode where clause: %w", err)
	}
	projection, err := json.Marshal(map[string]int{
		"dati." + dateKey: 1,
		"anagrafica":      1,
	})
	if err != nil {
		return "", fmt.Errorf("encode projection: %w", err)
	}

	params := url.Values{
		"where":       {string(where)},
		"projection":  {string(projection)},
		"max_results": {strconv.Itoa(c.maxResults)},
	}
	return c.baseURL + "?" + params.Encode(), nil
}
