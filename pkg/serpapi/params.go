package serpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// searchTypeOneWay is the Google Flights trip type for one-way searches.
const searchTypeOneWay = "2"

// Params are the query parameters of one search, excluding the engine and API key.
type Params map[string]any

// SearchConfig holds the route and locale settings that every search of a run shares.
type SearchConfig struct {
	Origin          string
	Destination     string
	HL              string
	GL              string
	Currency        string
	Adults          int
	TravelClass     int
	DeepSearch      bool
	IncludeAirlines []string
	ExcludeAirlines []string
}

// BuildParams returns the one-way search parameters for outboundDate.
func BuildParams(cfg SearchConfig, outboundDate string) Params {
	p := Params{
		"type":          searchTypeOneWay,
		"departure_id":  cfg.Origin,
		"arrival_id":    cfg.Destination,
		"outbound_date": outboundDate,
		"hl":            cfg.HL,
		"gl":            cfg.GL,
		"currency":      cfg.Currency,
		"adults":        cfg.Adults,
		"travel_class":  cfg.TravelClass,
		"deep_search":   fmt.Sprintf("%t", cfg.DeepSearch),
	}
	if len(cfg.IncludeAirlines) > 0 {
		p["include_airlines"] = strings.Join(cfg.IncludeAirlines, ",")
	}
	if len(cfg.ExcludeAirlines) > 0 {
		p["exclude_airlines"] = strings.Join(cfg.ExcludeAirlines, ",")
	}
	return p
}

// JSON renders the parameters as JSON with sorted keys.
func (p Params) JSON() string {
	b, err := canonicalJSON(map[string]any(p))
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (p Params) values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, fmt.Sprint(val))
	}
	return v
}

// SearchMetadataID returns search_metadata.id when the response carries one.
func SearchMetadataID(body gjson.Result) *string {
	id := body.Get("search_metadata.id")
	if id.Type != gjson.String {
		return nil
	}
	s := id.Str
	return &s
}

// canonicalJSON encodes v with sorted object keys and without HTML escaping.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
