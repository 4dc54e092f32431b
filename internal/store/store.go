// Package store persists search runs and offers. Rows are append-only.
package store

import (
	"context"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// RunFilter specifies criteria for listing search runs.
type RunFilter struct {
	Route string `json:"route,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// DefaultListLimit caps ListSearchRuns when the filter sets no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for tracking runs.
type Store interface {
	// Writes
	AppendSearchRuns(ctx context.Context, runs []model.SearchRun) error
	AppendOffers(ctx context.Context, offers []model.OfferRow) error

	// Reads
	// PriceObservations returns every stored observation for route. A store
	// that has never been migrated yields an empty snapshot.
	PriceObservations(ctx context.Context, route string) ([]model.PriceObservation, error)
	ListSearchRuns(ctx context.Context, filter RunFilter) ([]model.SearchRun, error)
	// LatestPrices returns the priced rows of the most recent run for route.
	LatestPrices(ctx context.Context, route string) ([]model.SearchRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var searchRunColumns = []string{
	"run_id", "run_date", "observed_at_utc", "route", "origin", "destination",
	"outbound_date", "currency", "cheapest_price", "error", "serpapi_params",
	"evidence_json_path", "evidence_sha256", "serpapi_search_metadata_id",
}

var offerColumns = []string{
	"run_id", "run_date", "observed_at_utc", "route", "outbound_date", "rank",
	"price", "currency", "bucket", "airlines", "depart_time", "arrive_time",
	"duration_minutes", "stops",
}

func searchRunValues(r model.SearchRun) []any {
	return []any{
		r.RunID, r.RunDate, r.ObservedAt.UTC().Format(model.ObservedAtLayout), r.Route, r.Origin, r.Destination,
		r.OutboundDate, r.Currency, r.CheapestPrice, r.Error, r.Params,
		r.EvidencePath, r.EvidenceSHA256, r.SearchMetadataID,
	}
}

func offerValues(o model.OfferRow) []any {
	return []any{
		o.RunID, o.RunDate, o.ObservedAt.UTC().Format(model.ObservedAtLayout), o.Route, o.OutboundDate, o.Rank,
		o.Price, o.Currency, string(o.Bucket), o.Airlines, o.DepartTime, o.ArriveTime,
		o.DurationMinutes, o.Stops,
	}
}

type scannable interface {
	Scan(dest ...any) error
}
