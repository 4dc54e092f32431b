// Package normalize turns loosely structured Google Flights search responses
// into canonical, deterministically ordered offer lists.
package normalize

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tmirko/flight-price-tracker/internal/model"
)

// missingStops sorts offers without stop data after any realistic stop count.
const missingStops = 9999

// ExtractOffersBytes parses raw JSON and extracts offers from it. Invalid JSON
// yields no offers.
func ExtractOffersBytes(raw []byte, outboundDate, defaultCurrency string) []model.Offer {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	return ExtractOffers(gjson.ParseBytes(raw), outboundDate, defaultCurrency)
}

// ExtractOffers collects every priced entry from the best/other buckets of the
// response and of each nested airport container, sorted by price then stops.
//
// Entries sharing a non-empty booking token are kept only once (first in scan
// order). A token is recorded as seen only after its entry produced a priced
// offer, so an unpriced duplicate never suppresses a later one.
func ExtractOffers(resp gjson.Result, outboundDate, defaultCurrency string) []model.Offer {
	var offers []model.Offer
	seen := make(map[string]struct{})

	for _, container := range containers(resp) {
		for _, bucket := range model.Buckets {
			entries := container.Get(string(bucket))
			if !entries.IsArray() {
				continue
			}
			for _, entry := range entries.Array() {
				if !entry.IsObject() {
					continue
				}

				token := stringField(entry, "booking_token")
				if token != "" {
					if _, dup := seen[token]; dup {
						continue
					}
				}

				price, currency, ok := extractPrice(entry, defaultCurrency)
				if !ok {
					continue
				}

				segments := segmentsOf(entry)
				depart, arrive := extractTimes(segments)

				offers = append(offers, model.Offer{
					OutboundDate:    outboundDate,
					Bucket:          bucket,
					Price:           price,
					Currency:        currency,
					Airlines:        extractAirlines(segments, entry),
					DepartTime:      depart,
					ArriveTime:      arrive,
					DurationMinutes: extractDuration(entry, segments),
					Stops:           extractStops(entry, segments),
				})

				if token != "" {
					seen[token] = struct{}{}
				}
			}
		}
	}

	slices.SortStableFunc(offers, func(a, b model.Offer) int {
		if c := cmp.Compare(a.Price, b.Price); c != 0 {
			return c
		}
		return cmp.Compare(stopsKey(a), stopsKey(b))
	})
	return offers
}

// Cheapest returns the first offer with the minimum price. Stops are not
// considered here.
func Cheapest(offers []model.Offer) (model.Offer, bool) {
	if len(offers) == 0 {
		return model.Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price < best.Price {
			best = o
		}
	}
	return best, true
}

// containers lists the scan targets: the response itself followed by every
// object in its optional airports array.
func containers(resp gjson.Result) []gjson.Result {
	if !resp.IsObject() {
		return nil
	}
	out := []gjson.Result{resp}
	airports := resp.Get("airports")
	if airports.IsArray() {
		for _, a := range airports.Array() {
			if a.IsObject() {
				out = append(out, a)
			}
		}
	}
	return out
}

func stopsKey(o model.Offer) int {
	if o.Stops == nil {
		return missingStops
	}
	return *o.Stops
}

// segmentsOf returns the entry's flight legs, or nil when absent or not an array.
func segmentsOf(entry gjson.Result) []gjson.Result {
	flights := entry.Get("flights")
	if !flights.IsArray() {
		return nil
	}
	return flights.Array()
}

func extractAirlines(segments []gjson.Result, entry gjson.Result) *string {
	var names []string
	for _, seg := range segments {
		if !seg.IsObject() {
			continue
		}
		a := firstTruthy(seg, "airline", "airline_name")
		if a.Type == gjson.String {
			if name := strings.TrimSpace(a.Str); name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		a := entry.Get("airline")
		if a.Type == gjson.String {
			if name := strings.TrimSpace(a.Str); name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	joined := strings.Join(out, ", ")
	return &joined
}

// extractTimes reads the first leg's departure and the last leg's arrival
// display times. Both are nil unless the first and last legs are objects.
func extractTimes(segments []gjson.Result) (*string, *string) {
	if len(segments) == 0 {
		return nil, nil
	}
	first, last := segments[0], segments[len(segments)-1]
	if !first.IsObject() || !last.IsObject() {
		return nil, nil
	}
	return airportTime(first.Get("departure_airport")), airportTime(last.Get("arrival_airport"))
}

func airportTime(airport gjson.Result) *string {
	if !airport.IsObject() {
		return nil
	}
	t := airport.Get("time")
	if t.Type != gjson.String {
		return nil
	}
	s := t.Str
	return &s
}

func extractDuration(entry gjson.Result, segments []gjson.Result) *int {
	d := firstTruthy(entry, "total_duration", "duration")
	if n, ok := intValue(d); ok {
		return &n
	}
	if d.Type == gjson.String {
		if token, ok := findNumberToken(d.Str); ok {
			f, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return nil
			}
			n := int(f)
			return &n
		}
	}

	total, found := 0, false
	for _, seg := range segments {
		if !seg.IsObject() {
			continue
		}
		if n, ok := intValue(seg.Get("duration")); ok {
			total += n
			found = true
		}
	}
	if !found {
		return nil
	}
	return &total
}

func extractStops(entry gjson.Result, segments []gjson.Result) *int {
	if n, ok := intValue(entry.Get("stops")); ok {
		return &n
	}
	if len(segments) > 0 {
		n := max(len(segments)-1, 0)
		return &n
	}
	return nil
}
