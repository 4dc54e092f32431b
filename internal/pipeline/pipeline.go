// Package pipeline runs one price tracking pass over the configured window.
package pipeline

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tmirko/flight-price-tracker/internal/config"
	"github.com/tmirko/flight-price-tracker/internal/evidence"
	"github.com/tmirko/flight-price-tracker/internal/history"
	"github.com/tmirko/flight-price-tracker/internal/model"
	"github.com/tmirko/flight-price-tracker/internal/monitoring"
	"github.com/tmirko/flight-price-tracker/internal/normalize"
	"github.com/tmirko/flight-price-tracker/internal/report"
	"github.com/tmirko/flight-price-tracker/internal/store"
	"github.com/tmirko/flight-price-tracker/pkg/serpapi"
)

// Pipeline fetches, normalizes, persists and reports one tracking run.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	client   serpapi.Client
	evidence *evidence.Writer
	alerter  *monitoring.Alerter
	now      func() time.Time
}

// New creates a Pipeline. alerter may be nil.
func New(
	cfg *config.Config,
	st store.Store,
	client serpapi.Client,
	ev *evidence.Writer,
	alerter *monitoring.Alerter,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		client:   client,
		evidence: ev,
		alerter:  alerter,
		now:      time.Now,
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID           string              `json:"run_id"`
	Route           string              `json:"route"`
	RunDate         string              `json:"run_date"`
	ObservedAt      time.Time           `json:"observed_at_utc"`
	Dates           int                 `json:"dates"`
	Failed          int                 `json:"failed"`
	Offers          int                 `json:"offers"`
	Rows            []model.ReportRow   `json:"rows"`
	Evidence        []model.EvidenceRef `json:"evidence"`
	ReportPaths     []string            `json:"report_paths"`
	AlertsTriggered int                 `json:"alerts_triggered"`
	AlertsSent      int                 `json:"alerts_sent"`
	DurationMs      int64               `json:"duration_ms"`
}

// OutboundDates returns days consecutive dates starting offsetDays after
// the calendar date of from.
func OutboundDates(from time.Time, offsetDays, days int) []string {
	y, m, d := from.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offsetDays)
	dates := make([]string, 0, days)
	for i := range days {
		dates = append(dates, start.AddDate(0, 0, i).Format(time.DateOnly))
	}
	return dates
}

// Run executes one tracking run. A failed search is recorded with a null
// price and the run continues; evidence, store and report failures abort it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	observedAt := p.now().UTC()
	route := p.cfg.RouteID()

	result := &Result{
		RunID:      uuid.New().String(),
		Route:      route,
		RunDate:    observedAt.Format(time.DateOnly),
		ObservedAt: observedAt,
	}

	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("route", route),
		zap.String("run_date", result.RunDate),
	)
	log.Info("pipeline: starting run")

	// History is read before anything from this run is written.
	prev := history.Lookup(ctx, p.store, route, observedAt)

	dates := OutboundDates(observedAt, p.cfg.Window.StartOffsetDays, p.cfg.Window.WindowDays)
	result.Dates = len(dates)

	searchCfg := p.searchConfig()
	runs := make([]model.SearchRun, 0, len(dates))
	var offers []model.OfferRow

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: run cancelled")
		}

		run, dateOffers, ev, err := p.searchDate(ctx, result, searchCfg, date)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
		offers = append(offers, dateOffers...)
		if ev != nil {
			result.Evidence = append(result.Evidence, *ev)
		}
		if run.Error != nil {
			result.Failed++
			log.Warn("pipeline: search failed",
				zap.String("outbound_date", date),
				zap.String("error", *run.Error),
			)
		}
	}

	if err := p.store.AppendSearchRuns(ctx, runs); err != nil {
		return nil, eris.Wrap(err, "pipeline: store search runs")
	}
	if err := p.store.AppendOffers(ctx, offers); err != nil {
		return nil, eris.Wrap(err, "pipeline: store offers")
	}
	result.Offers = len(offers)

	result.Rows = ReportRows(runs)

	md := report.BuildMarkdown(report.Input{
		Route:      route,
		ObservedAt: observedAt,
		Currency:   p.cfg.SerpAPI.Currency,
		Rows:       result.Rows,
		Evidence:   result.Evidence,
		PrevPrices: prev,
		TopKDeals:  p.cfg.Reporting.TopKDeals,
	})
	paths, err := report.Write(p.cfg.Reporting.Dir, result.RunDate, md, p.cfg.Reporting.WriteDatedReport)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: write report")
	}
	result.ReportPaths = paths

	if p.alerter != nil {
		alerts := p.alerter.Evaluate(route, p.cfg.SerpAPI.Currency, result.Rows, prev, observedAt)
		result.AlertsTriggered = len(alerts)
		result.AlertsSent = p.alerter.SendAlerts(ctx, alerts)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	log.Info("pipeline: run complete",
		zap.Int("dates", result.Dates),
		zap.Int("priced", len(result.Rows)),
		zap.Int("failed", result.Failed),
		zap.Int("offers", result.Offers),
		zap.Int("alerts_sent", result.AlertsSent),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

// searchDate queries one outbound date. A search failure is folded into the
// returned record; only an evidence write failure is returned as an error.
func (p *Pipeline) searchDate(
	ctx context.Context,
	res *Result,
	searchCfg serpapi.SearchConfig,
	date string,
) (model.SearchRun, []model.OfferRow, *model.EvidenceRef, error) {
	params := serpapi.BuildParams(searchCfg, date)
	run := model.SearchRun{
		RunID:        res.RunID,
		RunDate:      res.RunDate,
		ObservedAt:   res.ObservedAt,
		Route:        res.Route,
		Origin:       p.cfg.Route.Origin,
		Destination:  p.cfg.Route.Destination,
		OutboundDate: date,
		Currency:     p.cfg.SerpAPI.Currency,
		Params:       params.JSON(),
	}

	resp, err := p.client.Search(ctx, params)
	if err != nil {
		run.Error = model.Ptr(err.Error())
		return run, nil, nil, nil
	}

	ev, err := p.evidence.Write(ctx, res.Route, res.RunDate, date, resp.Raw)
	if err != nil {
		return run, nil, nil, eris.Wrapf(err, "pipeline: evidence for %s", date)
	}
	run.EvidencePath = model.Ptr(ev.Path)
	run.EvidenceSHA256 = model.Ptr(ev.SHA256)
	run.SearchMetadataID = serpapi.SearchMetadataID(resp.Body)

	extracted := normalize.ExtractOffers(resp.Body, date, p.cfg.SerpAPI.Currency)
	if best, ok := normalize.Cheapest(extracted); ok {
		run.CheapestPrice = model.Ptr(best.Price)
	}

	top := extracted
	if n := p.cfg.SerpAPI.TopNOffers; n >= 0 && len(top) > n {
		top = top[:n]
	}
	rows := make([]model.OfferRow, 0, len(top))
	for i, o := range top {
		rows = append(rows, model.OfferRow{
			RunID:           res.RunID,
			RunDate:         res.RunDate,
			ObservedAt:      res.ObservedAt,
			Route:           res.Route,
			OutboundDate:    date,
			Rank:            i + 1,
			Price:           o.Price,
			Currency:        o.CurrencyOr(p.cfg.SerpAPI.Currency),
			Bucket:          o.Bucket,
			Airlines:        o.Airlines,
			DepartTime:      o.DepartTime,
			ArriveTime:      o.ArriveTime,
			DurationMinutes: o.DurationMinutes,
			Stops:           o.Stops,
		})
	}
	return run, rows, &ev, nil
}

func (p *Pipeline) searchConfig() serpapi.SearchConfig {
	s := p.cfg.SerpAPI
	return serpapi.SearchConfig{
		Origin:          p.cfg.Route.Origin,
		Destination:     p.cfg.Route.Destination,
		HL:              s.HL,
		GL:              s.GL,
		Currency:        s.Currency,
		Adults:          s.Adults,
		TravelClass:     s.TravelClass,
		DeepSearch:      s.DeepSearch,
		IncludeAirlines: s.IncludeAirlines,
		ExcludeAirlines: s.ExcludeAirlines,
	}
}

// ReportRows keeps the priced runs and orders them by outbound date.
func ReportRows(runs []model.SearchRun) []model.ReportRow {
	rows := make([]model.ReportRow, 0, len(runs))
	for _, r := range runs {
		if !r.Succeeded() {
			continue
		}
		rows = append(rows, model.ReportRow{OutboundDate: r.OutboundDate, CheapestPrice: *r.CheapestPrice})
	}
	slices.SortStableFunc(rows, func(a, b model.ReportRow) int {
		return cmp.Compare(a.OutboundDate, b.OutboundDate)
	})
	return rows
}
