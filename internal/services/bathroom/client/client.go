// Package client talks to the Refuge Restrooms locator API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"github.com/transconnect-go/internal/domain/bathroom"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/config"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/metrics"
	"github.com/transconnect-go/pkg/resilience"
	"github.com/transconnect-go/pkg/telemetry"
)

const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"

	defaultPerPage = 50
	maxErrorBody   = 512
)

// StatusError reports a non-2xx answer from the upstream.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bathroom api returned %d: %s", e.StatusCode, e.Body)
}

// Client looks up unisex bathrooms near a point. Lookups are never retried;
// repeated upstream failures open the breaker and later calls fail fast.
type Client struct {
	baseURL    string
	perPage    int
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	telemetry  *telemetry.Telemetry
	logger     logger.Logger
}

func NewClient(cfg config.BathroomConfig, tel *telemetry.Telemetry, log logger.Logger) *Client {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if tel == nil {
		tel = telemetry.NewNop()
	}

	breakerCfg := cfg.ToCircuitBreakerConfig()
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("Circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: perPage,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout(),
		},
		breaker:   resilience.NewCircuitBreaker(breakerCfg),
		telemetry: tel,
		logger:    log,
	}
}

// LookupURL builds the by_location request for q.
func (c *Client) LookupURL(q bathroom.Query) string {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("offset", "0")
	if q.Accessible {
		params.Set("ada", "true")
	}
	params.Set("unisex", "true")
	params.Set("lat", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	return c.baseURL + "/by_location?" + params.Encode()
}

// Near returns the rows the upstream lists near q, unchanged. Every
// failure, including an open breaker, surfaces as an Internal error.
func (c *Client) Near(ctx context.Context, q bathroom.Query) ([]bathroom.Bathroom, error) {
	endpoint := c.LookupURL(q)

	ctx, span := c.telemetry.StartClientSpan(ctx, "bathrooms.by_location", http.MethodGet, endpoint)
	bathrooms, err := resilience.Execute(ctx, c.breaker, func(ctx context.Context) ([]bathroom.Bathroom, error) {
		return c.fetch(ctx, endpoint)
	})
	telemetry.EndSpan(span, err)

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.RecordBathroomLookup(OutcomeCircuitOpen)
		c.logger.Warn("Bathroom lookup rejected", "error", err)
		return nil, apperr.Internal(err)
	case err != nil:
		metrics.RecordBathroomLookup(OutcomeError)
		c.logger.Error("Bathroom lookup failed", "error", err, "url", endpoint)
		return nil, apperr.Internal(err)
	}

	metrics.RecordBathroomLookup(OutcomeSuccess)
	return bathrooms, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]bathroom.Bathroom, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bathroom request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query bathroom api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	rows := []bathroom.Bathroom{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode bathroom response: %w", err)
	}
	return rows, nil
}
