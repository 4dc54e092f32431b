package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmirko/flight-price-tracker/internal/model"
	"github.com/tmirko/flight-price-tracker/internal/store"
)

func newServeStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendSearchRuns(context.Background(), []model.SearchRun{
		{RunID: "run-1", RunDate: "2026-03-01", ObservedAt: at, Route: "LHR-JFK", Origin: "LHR", Destination: "JFK",
			OutboundDate: "2026-03-02", Currency: "USD", CheapestPrice: model.Ptr(199.0), Params: "{}"},
		{RunID: "run-1", RunDate: "2026-03-01", ObservedAt: at, Route: "LHR-JFK", Origin: "LHR", Destination: "JFK",
			OutboundDate: "2026-03-03", Currency: "USD", Error: model.Ptr("serpapi: status 500"), Params: "{}"},
	}))
	return st
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(newServeStore(t), "LHR-JFK", t.TempDir())

	rr := serve(h, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_Runs(t *testing.T) {
	h := buildRouter(newServeStore(t), "LHR-JFK", t.TempDir())

	rr := serve(h, "/api/runs?route=LHR-JFK")
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.SearchRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rr = serve(h, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rr = serve(h, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildRouter_LatestReport(t *testing.T) {
	dir := t.TempDir()
	h := buildRouter(newServeStore(t), "LHR-JFK", dir)

	rr := serve(h, "/report/latest")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.md"), []byte("# Flight price tracker report\n"), 0o644))
	rr = serve(h, "/report/latest")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, "# Flight price tracker report\n", rr.Body.String())
}

func TestBuildRouter_Metrics(t *testing.T) {
	h := buildRouter(newServeStore(t), "LHR-JFK", t.TempDir())

	rr := serve(h, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `flight_tracker_cheapest_price{currency="USD",outbound_date="2026-03-02",route="LHR-JFK"} 199`)
	assert.NotContains(t, body, `outbound_date="2026-03-03"`)
	assert.Contains(t, body, `flight_tracker_last_run_timestamp_seconds{route="LHR-JFK"}`)
}

func TestBuildRouter_CORS(t *testing.T) {
	h := buildRouter(newServeStore(t), "LHR-JFK", t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
