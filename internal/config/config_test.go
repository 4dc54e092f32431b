package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp switches to an empty temp dir so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Window.StartOffsetDays)
	assert.Equal(t, 30, cfg.Window.WindowDays)
	assert.Equal(t, "https://serpapi.com", cfg.SerpAPI.BaseURL)
	assert.Equal(t, "en", cfg.SerpAPI.HL)
	assert.Equal(t, "us", cfg.SerpAPI.GL)
	assert.Equal(t, "USD", cfg.SerpAPI.Currency)
	assert.Equal(t, 1, cfg.SerpAPI.Adults)
	assert.Equal(t, 1, cfg.SerpAPI.TravelClass)
	assert.False(t, cfg.SerpAPI.DeepSearch)
	assert.Equal(t, 5, cfg.SerpAPI.TopNOffers)
	assert.InDelta(t, 1.0, cfg.SerpAPI.RateLimitSeconds, 0.001)
	assert.Equal(t, 60, cfg.SerpAPI.TimeoutSecs)
	assert.Equal(t, 3, cfg.SerpAPI.MaxRetries)
	assert.Equal(t, "reports", cfg.Reporting.Dir)
	assert.True(t, cfg.Reporting.WriteDatedReport)
	assert.Equal(t, 5, cfg.Reporting.TopKDeals)
	assert.Equal(t, "evidence", cfg.Evidence.Dir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/tracker.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 10.0, cfg.Alerts.DropThresholdPct, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

const sampleYAML = `
route:
  origin: VIE
  destination: TGD
window:
  start_offset_days: 3
  window_days: 14
serpapi:
  gl: at
  currency: EUR
  include_airlines: [OS, JU]
  rate_limit_seconds: 0
reporting:
  write_dated_report: false
  top_k_deals: 3
alerts:
  target_price: 120
  kafka_brokers: ["localhost:9092"]
  kafka_topic: price-alerts
`

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "VIE", cfg.Route.Origin)
	assert.Equal(t, "VIE-TGD", cfg.RouteID())
	assert.Equal(t, 3, cfg.Window.StartOffsetDays)
	assert.Equal(t, 14, cfg.Window.WindowDays)
	assert.Equal(t, "EUR", cfg.SerpAPI.Currency)
	assert.Equal(t, []string{"OS", "JU"}, cfg.SerpAPI.IncludeAirlines)
	assert.Zero(t, cfg.SerpAPI.RateLimitSeconds)
	assert.False(t, cfg.Reporting.WriteDatedReport)
	assert.Equal(t, 3, cfg.Reporting.TopKDeals)
	assert.InDelta(t, 120.0, cfg.Alerts.TargetPrice, 0.001)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Alerts.KafkaBrokers)
	// Untouched sections keep defaults.
	assert.Equal(t, "en", cfg.SerpAPI.HL)
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "TGD", cfg.Route.Destination)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	chdirTemp(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleYAML), 0o644))

	t.Setenv("TRACKER_ROUTE_ORIGIN", "LHR")
	t.Setenv("TRACKER_SERVER_PORT", "3000")
	t.Setenv("TRACKER_EVIDENCE_S3_BUCKET", "tracker-evidence")
	t.Setenv("SERPAPI_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "LHR", cfg.Route.Origin)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "tracker-evidence", cfg.Evidence.S3Bucket)
	assert.Equal(t, "from-env", cfg.SerpAPI.APIKey)
}

func TestLoadPrefixedAPIKeyWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TRACKER_SERPAPI_API_KEY", "prefixed")
	t.Setenv("SERPAPI_API_KEY", "plain")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.SerpAPI.APIKey)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validConfig returns a Config with defaults populated for validation tests.
func validConfig() *Config {
	return &Config{
		Route:     RouteConfig{Origin: "LHR", Destination: "JFK"},
		Window:    WindowConfig{StartOffsetDays: 1, WindowDays: 30},
		SerpAPI:   SerpAPIConfig{Currency: "USD", Adults: 1, TravelClass: 1, TopNOffers: 5, RateLimitSeconds: 1},
		Reporting: ReportingConfig{TopKDeals: 5},
		Store:     StoreConfig{Driver: "sqlite"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing origin", func(c *Config) { c.Route.Origin = "" }, "route.origin"},
		{"long destination", func(c *Config) { c.Route.Destination = "ABCDEFGHIJK" }, "route.destination"},
		{"window zero", func(c *Config) { c.Window.WindowDays = 0 }, "window.window_days"},
		{"window too long", func(c *Config) { c.Window.WindowDays = 366 }, "window.window_days"},
		{"negative offset", func(c *Config) { c.Window.StartOffsetDays = -1 }, "window.start_offset_days"},
		{"zero offset ok", func(c *Config) { c.Window.StartOffsetDays = 0 }, ""},
		{"adults", func(c *Config) { c.SerpAPI.Adults = 10 }, "serpapi.adults"},
		{"travel class", func(c *Config) { c.SerpAPI.TravelClass = 5 }, "serpapi.travel_class"},
		{"top n", func(c *Config) { c.SerpAPI.TopNOffers = 51 }, "serpapi.top_n_offers"},
		{"rate limit", func(c *Config) { c.SerpAPI.RateLimitSeconds = 61 }, "serpapi.rate_limit_seconds"},
		{"top k", func(c *Config) { c.Reporting.TopKDeals = 0 }, "reporting.top_k_deals"},
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"negative target", func(c *Config) { c.Alerts.TargetPrice = -1 }, "alerts thresholds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Route.Origin = ""
	cfg.SerpAPI.Adults = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route.origin")
	assert.Contains(t, err.Error(), "serpapi.adults")
}
