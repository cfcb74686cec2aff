package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transconnect-go/internal/domain/bathroom"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/config"
	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/metrics"
	"github.com/transconnect-go/pkg/resilience"
	"github.com/transconnect-go/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const sample = `[
  {"id": 1, "name": "Cafe", "street": "1 Main St", "city": "New York", "state": "NY",
   "country": "US", "accessible": true, "unisex": true, "latitude": 40.77, "longitude": -73.97,
   "distance": 0.2, "upvote": 3, "downvote": 0, "edit_id": 1, "approved": true,
   "bearing": "12.5", "directions": null}
]`

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.BathroomConfig{
		BaseURL:         baseURL,
		Timeout:         2,
		PerPage:         50,
		BreakerTimeout:  3600,
		BreakerFailures: 2,
	}, telemetry.NewNop(), logger.NewNop())
}

func TestLookupURL(t *testing.T) {
	c := newClient(t, "https://example.test/api/v1/restrooms/")

	plain := c.LookupURL(bathroom.Query{Latitude: 40.776676, Longitude: -73.971321})
	assert.Equal(t,
		"https://example.test/api/v1/restrooms/by_location?lat=40.776676&lng=-73.971321&offset=0&page=1&per_page=50&unisex=true",
		plain)

	accessible := c.LookupURL(bathroom.Query{Latitude: 1.5, Longitude: 2, Accessible: true})
	assert.Contains(t, accessible, "ada=true")
	assert.Contains(t, accessible, "lat=1.5")
	assert.Contains(t, accessible, "lng=2")
}

func TestNearPassesRowsThrough(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/by_location", r.URL.Path)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sample))
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.BathroomLookupsTotal.WithLabelValues(OutcomeSuccess))

	bathrooms, err := newClient(t, server.URL).Near(context.Background(), bathroom.Query{Latitude: 40.77, Longitude: -73.97, Accessible: true})
	require.NoError(t, err)
	require.Len(t, bathrooms, 1)
	assert.JSONEq(t, `{"id": 1, "name": "Cafe", "street": "1 Main St", "city": "New York", "state": "NY",
		"country": "US", "accessible": true, "unisex": true, "latitude": 40.77, "longitude": -73.97,
		"distance": 0.2, "upvote": 3, "downvote": 0, "edit_id": 1, "approved": true,
		"bearing": "12.5", "directions": null}`, string(bathrooms[0]))
	assert.Contains(t, query, "ada=true")
	assert.Contains(t, query, "unisex=true")

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BathroomLookupsTotal.WithLabelValues(OutcomeSuccess)))
}

func TestNearEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	bathrooms, err := newClient(t, server.URL).Near(context.Background(), bathroom.Query{})
	require.NoError(t, err)
	assert.NotNil(t, bathrooms)
	assert.Empty(t, bathrooms)
}

func TestNearUpstreamFailureIsInternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Near(context.Background(), bathroom.Query{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestNearMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).Near(context.Background(), bathroom.Query{})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newClient(t, server.URL)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Near(ctx, bathroom.Query{})
		require.Error(t, err)
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&hits))

	before := testutil.ToFloat64(metrics.BathroomLookupsTotal.WithLabelValues(OutcomeCircuitOpen))

	_, err := c.Near(ctx, bathroom.Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not reach the upstream")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BathroomLookupsTotal.WithLabelValues(OutcomeCircuitOpen)))
}

func TestNearRecordsClientSpan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tel := telemetry.NewWithProvider(provider, "test")
	t.Cleanup(func() { _ = tel.Close(context.Background()) })

	c := NewClient(config.BathroomConfig{BaseURL: server.URL, Timeout: 2}, tel, logger.NewNop())
	_, err := c.Near(context.Background(), bathroom.Query{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "bathrooms.by_location", spans[0].Name())
}
