package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Route     RouteConfig     `yaml:"route" mapstructure:"route"`
	Window    WindowConfig    `yaml:"window" mapstructure:"window"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Reporting ReportingConfig `yaml:"reporting" mapstructure:"reporting"`
	Evidence  EvidenceConfig  `yaml:"evidence" mapstructure:"evidence"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Alerts    AlertsConfig    `yaml:"alerts" mapstructure:"alerts"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RouteConfig names the tracked route by IATA airport codes.
type RouteConfig struct {
	Origin      string `yaml:"origin" mapstructure:"origin"`
	Destination string `yaml:"destination" mapstructure:"destination"`
}

// WindowConfig defines the rolling outbound-date window.
type WindowConfig struct {
	StartOffsetDays int `yaml:"start_offset_days" mapstructure:"start_offset_days"`
	WindowDays      int `yaml:"window_days" mapstructure:"window_days"`
}

// SerpAPIConfig configures Google Flights searches.
type SerpAPIConfig struct {
	APIKey           string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string   `yaml:"base_url" mapstructure:"base_url"`
	HL               string   `yaml:"hl" mapstructure:"hl"`
	GL               string   `yaml:"gl" mapstructure:"gl"`
	Currency         string   `yaml:"currency" mapstructure:"currency"`
	Adults           int      `yaml:"adults" mapstructure:"adults"`
	TravelClass      int      `yaml:"travel_class" mapstructure:"travel_class"`
	DeepSearch       bool     `yaml:"deep_search" mapstructure:"deep_search"`
	IncludeAirlines  []string `yaml:"include_airlines" mapstructure:"include_airlines"`
	ExcludeAirlines  []string `yaml:"exclude_airlines" mapstructure:"exclude_airlines"`
	TopNOffers       int      `yaml:"top_n_offers" mapstructure:"top_n_offers"`
	RateLimitSeconds float64  `yaml:"rate_limit_seconds" mapstructure:"rate_limit_seconds"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int      `yaml:"max_retries" mapstructure:"max_retries"`
}

// ReportingConfig configures the Markdown report.
type ReportingConfig struct {
	Dir              string `yaml:"dir" mapstructure:"dir"`
	WriteDatedReport bool   `yaml:"write_dated_report" mapstructure:"write_dated_report"`
	TopKDeals        int    `yaml:"top_k_deals" mapstructure:"top_k_deals"`
}

// EvidenceConfig configures raw payload storage. S3 mirroring is enabled
// when S3Bucket is set.
type EvidenceConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	S3Bucket string `yaml:"s3_bucket" mapstructure:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix" mapstructure:"s3_prefix"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AlertsConfig configures price alerts. Zero thresholds disable the
// corresponding alert.
type AlertsConfig struct {
	DropThresholdPct float64  `yaml:"drop_threshold_pct" mapstructure:"drop_threshold_pct"`
	TargetPrice      float64  `yaml:"target_price" mapstructure:"target_price"`
	WebhookURL       string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	KafkaBrokers     []string `yaml:"kafka_brokers" mapstructure:"kafka_brokers"`
	KafkaTopic       string   `yaml:"kafka_topic" mapstructure:"kafka_topic"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// RunIntervalMins schedules tracking runs from serve; 0 disables.
	RunIntervalMins int `yaml:"run_interval_mins" mapstructure:"run_interval_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (or path when set), env vars, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("serpapi.api_key", "TRACKER_SERPAPI_API_KEY", "SERPAPI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults. Keys without a meaningful default are registered empty so
	// AutomaticEnv can still populate them.
	v.SetDefault("route.origin", "")
	v.SetDefault("route.destination", "")
	v.SetDefault("window.start_offset_days", 1)
	v.SetDefault("window.window_days", 30)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.hl", "en")
	v.SetDefault("serpapi.gl", "us")
	v.SetDefault("serpapi.currency", "USD")
	v.SetDefault("serpapi.adults", 1)
	v.SetDefault("serpapi.travel_class", 1)
	v.SetDefault("serpapi.deep_search", false)
	v.SetDefault("serpapi.top_n_offers", 5)
	v.SetDefault("serpapi.rate_limit_seconds", 1.0)
	v.SetDefault("serpapi.timeout_secs", 60)
	v.SetDefault("serpapi.max_retries", 3)
	v.SetDefault("reporting.dir", "reports")
	v.SetDefault("reporting.write_dated_report", true)
	v.SetDefault("reporting.top_k_deals", 5)
	v.SetDefault("evidence.dir", "evidence")
	v.SetDefault("evidence.s3_bucket", "")
	v.SetDefault("evidence.s3_prefix", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/tracker.db")
	v.SetDefault("alerts.drop_threshold_pct", 10.0)
	v.SetDefault("alerts.target_price", 0.0)
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.kafka_brokers", []string{})
	v.SetDefault("alerts.kafka_topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.run_interval_mins", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless a path was given)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a tracking run depends on.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(codeLen(c.Route.Origin), "route.origin must be 3-10 characters")
	check(codeLen(c.Route.Destination), "route.destination must be 3-10 characters")
	check(between(c.Window.StartOffsetDays, 0, 365), "window.start_offset_days must be 0-365")
	check(between(c.Window.WindowDays, 1, 365), "window.window_days must be 1-365")
	check(between(c.SerpAPI.Adults, 1, 9), "serpapi.adults must be 1-9")
	check(between(c.SerpAPI.TravelClass, 1, 4), "serpapi.travel_class must be 1-4")
	check(between(c.SerpAPI.TopNOffers, 1, 50), "serpapi.top_n_offers must be 1-50")
	check(c.SerpAPI.RateLimitSeconds >= 0 && c.SerpAPI.RateLimitSeconds <= 60, "serpapi.rate_limit_seconds must be 0-60")
	check(c.SerpAPI.Currency != "", "serpapi.currency is required")
	check(between(c.Reporting.TopKDeals, 1, 50), "reporting.top_k_deals must be 1-50")
	check(c.Alerts.DropThresholdPct >= 0 && c.Alerts.TargetPrice >= 0, "alerts thresholds must not be negative")
	check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres", "store.driver must be sqlite or postgres")

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RouteID returns the ORIGIN-DESTINATION route identifier.
func (c *Config) RouteID() string {
	return c.Route.Origin + "-" + c.Route.Destination
}

func codeLen(s string) bool {
	return len(s) >= 3 && len(s) <= 10
}

func between(n, lo, hi int) bool {
	return n >= lo && n <= hi
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
