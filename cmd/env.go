package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/evidence"
	"github.com/tmirko/flight-price-tracker/internal/monitoring"
	"github.com/tmirko/flight-price-tracker/internal/pipeline"
	"github.com/tmirko/flight-price-tracker/internal/resilience"
	"github.com/tmirko/flight-price-tracker/internal/store"
	"github.com/tmirko/flight-price-tracker/pkg/serpapi"
)

// trackerEnv holds the store, clients and pipeline needed by run and serve.
type trackerEnv struct {
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	publisher *monitoring.KafkaPublisher // may be nil
}

// Close releases resources held by the environment.
func (e *trackerEnv) Close() {
	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			zap.L().Warn("close kafka publisher", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "data/tracker.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store. Callers should defer Close.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initSerpAPI() (serpapi.Client, error) {
	if cfg.SerpAPI.APIKey == "" {
		return nil, eris.New("serpapi api key is required (TRACKER_SERPAPI_API_KEY or SERPAPI_API_KEY)")
	}
	return serpapi.NewClient(cfg.SerpAPI.APIKey,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithTimeout(time.Duration(cfg.SerpAPI.TimeoutSecs)*time.Second),
		serpapi.WithMinInterval(time.Duration(cfg.SerpAPI.RateLimitSeconds*float64(time.Second))),
		serpapi.WithRetry(resilience.FromMaxRetries(cfg.SerpAPI.MaxRetries)),
	), nil
}

func initEvidence(ctx context.Context) *evidence.Writer {
	var mirror evidence.Mirror
	if cfg.Evidence.S3Bucket != "" {
		m, err := evidence.NewS3Mirror(ctx, cfg.Evidence.S3Bucket, cfg.Evidence.S3Prefix)
		if err != nil {
			zap.L().Warn("s3 evidence mirror disabled", zap.Error(err))
		} else {
			mirror = m
			zap.L().Info("s3 evidence mirror enabled", zap.String("bucket", cfg.Evidence.S3Bucket))
		}
	}
	return evidence.NewWriter(cfg.Evidence.Dir, mirror)
}

// initTracker validates the config and builds the full pipeline. Callers
// should defer env.Close().
func initTracker(ctx context.Context) (*trackerEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := initSerpAPI()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &trackerEnv{Store: st}

	var publisher monitoring.Publisher
	if len(cfg.Alerts.KafkaBrokers) > 0 {
		kp, err := monitoring.NewKafkaPublisher(cfg.Alerts.KafkaBrokers, cfg.Alerts.KafkaTopic)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.publisher = kp
		publisher = kp
		zap.L().Info("kafka alert publisher enabled", zap.String("topic", cfg.Alerts.KafkaTopic))
	}
	alerter := monitoring.NewAlerter(cfg.Alerts, publisher)

	env.Pipeline = pipeline.New(cfg, st, client, initEvidence(ctx), alerter)
	return env, nil
}
