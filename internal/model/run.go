package model

import "time"

// SearchRun is the persisted outcome of querying one outbound date during a run.
// Rows are append-only: a run never rewrites history from earlier runs.
type SearchRun struct {
	RunID            string    `json:"run_id"`
	RunDate          string    `json:"run_date"`
	ObservedAt       time.Time `json:"observed_at_utc"`
	Route            string    `json:"route"`
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	OutboundDate     string    `json:"outbound_date"`
	Currency         string    `json:"currency"`
	CheapestPrice    *float64  `json:"cheapest_price"`
	Error            *string   `json:"error,omitempty"`
	Params           string    `json:"serpapi_params"`
	EvidencePath     *string   `json:"evidence_json_path,omitempty"`
	EvidenceSHA256   *string   `json:"evidence_sha256,omitempty"`
	SearchMetadataID *string   `json:"serpapi_search_metadata_id,omitempty"`
}

// Succeeded reports whether the date produced a cheapest price.
func (r SearchRun) Succeeded() bool {
	return r.CheapestPrice != nil && r.OutboundDate != ""
}

// OfferRow is one of the top-N offers retained for an outbound date.
type OfferRow struct {
	RunID           string    `json:"run_id"`
	RunDate         string    `json:"run_date"`
	ObservedAt      time.Time `json:"observed_at_utc"`
	Route           string    `json:"route"`
	OutboundDate    string    `json:"outbound_date"`
	Rank            int       `json:"rank"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency"`
	Bucket          Bucket    `json:"bucket"`
	Airlines        *string   `json:"airlines,omitempty"`
	DepartTime      *string   `json:"depart_time,omitempty"`
	ArriveTime      *string   `json:"arrive_time,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Stops           *int      `json:"stops,omitempty"`
}

// EvidenceRef points at a raw payload persisted for auditing.
type EvidenceRef struct {
	OutboundDate string `json:"outbound_date"`
	Path         string `json:"json_path"`
	SHA256       string `json:"sha256"`
}

// PriceObservation is the subset of a stored search run read back for
// historical comparison. ObservedAt is kept as stored so unparseable values
// can be detected and skipped by the reader.
type PriceObservation struct {
	Route         string
	ObservedAt    string
	OutboundDate  string
	CheapestPrice *float64
}

// ReportRow is a successful current-run row fed to the report renderer.
type ReportRow struct {
	OutboundDate  string  `json:"outbound_date"`
	CheapestPrice float64 `json:"cheapest_price"`
}

// Route joins origin and destination into the ORIGIN-DESTINATION identifier.
func Route(origin, destination string) string {
	return origin + "-" + destination
}

// ObservedAtLayout is the text layout observation instants are persisted with.
// Fixed-width fractions keep UTC values sortable as text.
const ObservedAtLayout = "2006-01-02T15:04:05.000000Z07:00"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
