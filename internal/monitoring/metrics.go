package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

var (
	cheapestPriceDesc = prometheus.NewDesc(
		"flight_tracker_cheapest_price",
		"Cheapest price per outbound date from the most recent run",
		[]string{"route", "outbound_date", "currency"},
		nil,
	)
	lastRunDesc = prometheus.NewDesc(
		"flight_tracker_last_run_timestamp_seconds",
		"Observation time of the most recent run with prices",
		[]string{"route"},
		nil,
	)
)

// LatestPriceSource reads the priced rows of the most recent run for a route.
type LatestPriceSource interface {
	LatestPrices(ctx context.Context, route string) ([]model.SearchRun, error)
}

// PriceCollector is a Prometheus collector that reads the latest run from
// the store on each scrape.
type PriceCollector struct {
	src     LatestPriceSource
	route   string
	timeout time.Duration
}

// NewPriceCollector returns a collector for route.
func NewPriceCollector(src LatestPriceSource, route string) *PriceCollector {
	return &PriceCollector{src: src, route: route, timeout: 5 * time.Second}
}

// Describe sends the metric descriptors to the channel.
func (c *PriceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cheapestPriceDesc
	ch <- lastRunDesc
}

// Collect emits one gauge per outbound date of the latest run.
func (c *PriceCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	runs, err := c.src.LatestPrices(ctx, c.route)
	if err != nil {
		zap.L().Error("monitoring: failed to collect price metrics", zap.String("route", c.route), zap.Error(err))
		return
	}

	var observed time.Time
	for _, r := range runs {
		if r.CheapestPrice == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			cheapestPriceDesc,
			prometheus.GaugeValue,
			*r.CheapestPrice,
			r.Route,
			r.OutboundDate,
			r.Currency,
		)
		if r.ObservedAt.After(observed) {
			observed = r.ObservedAt
		}
	}
	if !observed.IsZero() {
		ch <- prometheus.MustNewConstMetric(lastRunDesc, prometheus.GaugeValue, float64(observed.Unix()), c.route)
	}
}
