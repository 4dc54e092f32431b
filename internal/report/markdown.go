// Package report renders the Markdown comparison report for a tracking run.
package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// Input holds everything the report is rendered from. Rows must already be
// filtered to successful dates and sorted by outbound date.
type Input struct {
	Route      string
	ObservedAt time.Time
	Currency   string
	Rows       []model.ReportRow
	Evidence   []model.EvidenceRef
	// PrevPrices maps outbound date to the previous run's cheapest price.
	// Nil means there is no history to compare against.
	PrevPrices map[string]float64
	TopKDeals  int
}

// BuildMarkdown renders the report. Output is deterministic for a given input.
func BuildMarkdown(in Input) string {
	evByDate := make(map[string]model.EvidenceRef, len(in.Evidence))
	for _, ev := range in.Evidence {
		evByDate[ev.OutboundDate] = ev
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Flight price tracker report")
	line("")
	line("- Route: `%s`", in.Route)
	line("- Observed at (UTC): `%s`", FormatObservedAt(in.ObservedAt))
	line("")

	line("## Cheapest by outbound date")
	line("")
	line("| Outbound date | Cheapest | Δ vs prev | Evidence |")
	line("|---|---:|---:|---|")
	for _, r := range in.Rows {
		delta := ""
		if prev, ok := in.PrevPrices[r.OutboundDate]; ok {
			delta = FormatDelta(r.CheapestPrice-prev, in.Currency)
		}
		evidence := ""
		if ev, ok := evByDate[r.OutboundDate]; ok {
			evidence = fmt.Sprintf("`%s` (`%s`)", ev.Path, ev.SHA256)
		}
		line("| %s | %s | %s | %s |", r.OutboundDate, FormatMoney(r.CheapestPrice, in.Currency), delta, evidence)
	}

	line("")
	line("## Top deals")
	line("")
	for _, r := range TopDeals(in.Rows, in.TopKDeals) {
		line("- `%s`: %s", r.OutboundDate, FormatMoney(r.CheapestPrice, in.Currency))
	}

	line("")
	line("## Evidence")
	line("")
	for _, ev := range in.Evidence {
		line("- `%s`: `%s` (sha256 `%s`)", ev.OutboundDate, ev.Path, ev.SHA256)
	}

	return b.String()
}

// TopDeals returns the k cheapest rows. Rows with equal prices keep their
// input order.
func TopDeals(rows []model.ReportRow, k int) []model.ReportRow {
	if k <= 0 {
		return nil
	}
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.ReportRow) int {
		return cmp.Compare(a.CheapestPrice, b.CheapestPrice)
	})
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

// FormatMoney renders an amount with two decimals, trailing zeros and a
// trailing decimal point removed: 150.00 -> "USD 150", 150.50 -> "USD 150.5".
func FormatMoney(amount float64, currency string) string {
	s := fmt.Sprintf("%s %.2f", currency, amount)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// FormatDelta is FormatMoney with an explicit "+" for strictly positive deltas.
func FormatDelta(delta float64, currency string) string {
	if delta > 0 {
		return "+" + FormatMoney(delta, currency)
	}
	return FormatMoney(delta, currency)
}

// FormatObservedAt renders an instant in UTC as ISO 8601 with a numeric
// offset, including microseconds only when present.
func FormatObservedAt(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format("2006-01-02T15:04:05-07:00")
	}
	return t.Format("2006-01-02T15:04:05.000000-07:00")
}
