// Package history looks up the previous run's prices for delta reporting.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// PriceMap maps outbound date to the cheapest price observed for it.
// A nil PriceMap means there is no history.
type PriceMap map[string]float64

// Source provides a snapshot of every persisted observation for a route.
// A source that was never written must return an empty snapshot, not an error.
type Source interface {
	PriceObservations(ctx context.Context, route string) ([]model.PriceObservation, error)
}

// observedAtLayouts are accepted when parsing stored observation instants.
// Layouts without an offset are read as UTC.
var observedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Lookup loads the route's snapshot from src and returns the prices of the
// latest run observed strictly before cutoff. Read failures are logged and
// treated as no history.
func Lookup(ctx context.Context, src Source, route string, cutoff time.Time) PriceMap {
	obs, err := src.PriceObservations(ctx, route)
	if err != nil {
		zap.L().Warn("history: read observations failed, continuing without history",
			zap.String("route", route),
			zap.Error(err),
		)
		return nil
	}
	return PreviousPrices(obs, route, cutoff)
}

// PreviousPrices selects the most recent observation batch before cutoff.
//
// The first pass keeps observations for route whose observed_at parses and is
// strictly before cutoff. The second pass keeps only those sharing the maximum
// surviving observed_at, so every row of that run's batch is considered
// together. Rows with a null price are omitted; if nothing remains the result
// is nil.
func PreviousPrices(obs []model.PriceObservation, route string, cutoff time.Time) PriceMap {
	type candidate struct {
		at  time.Time
		obs model.PriceObservation
	}

	var eligible []candidate
	for _, o := range obs {
		if o.Route != route {
			continue
		}
		at, ok := ParseObservedAt(o.ObservedAt)
		if !ok || !at.Before(cutoff) {
			continue
		}
		eligible = append(eligible, candidate{at: at, obs: o})
	}
	if len(eligible) == 0 {
		return nil
	}

	latest := eligible[0].at
	for _, c := range eligible[1:] {
		if c.at.After(latest) {
			latest = c.at
		}
	}

	prices := make(PriceMap)
	for _, c := range eligible {
		if !c.at.Equal(latest) {
			continue
		}
		if c.obs.OutboundDate == "" || c.obs.CheapestPrice == nil {
			continue
		}
		prices[c.obs.OutboundDate] = *c.obs.CheapestPrice
	}
	if len(prices) == 0 {
		return nil
	}
	return prices
}

// ParseObservedAt parses a stored observation instant.
func ParseObservedAt(s string) (time.Time, bool) {
	for _, layout := range observedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
