package model

// Bucket names the grouping an offer was read from in a search response.
type Bucket string

const (
	BucketBest  Bucket = "best_flights"
	BucketOther Bucket = "other_flights"
)

// Buckets is the fixed scan order used when extracting offers.
var Buckets = []Bucket{BucketBest, BucketOther}

// Offer is one priced itinerary candidate for a single outbound date.
// Optional fields are nil when the response did not carry them.
type Offer struct {
	OutboundDate    string  `json:"outbound_date"`
	Bucket          Bucket  `json:"bucket"`
	Price           float64 `json:"price"`
	Currency        *string `json:"currency,omitempty"`
	Airlines        *string `json:"airlines,omitempty"`
	DepartTime      *string `json:"depart_time,omitempty"`
	ArriveTime      *string `json:"arrive_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Stops           *int    `json:"stops,omitempty"`
}

// CurrencyOr returns the offer currency, or fallback when the offer has none.
func (o Offer) CurrencyOr(fallback string) string {
	if o.Currency != nil && *o.Currency != "" {
		return *o.Currency
	}
	return fallback
}
