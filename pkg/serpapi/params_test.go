package serpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildParams(t *testing.T) {
	cfg := SearchConfig{
		Origin:      "VIE",
		Destination: "TGD",
		HL:          "en",
		GL:          "at",
		Currency:    "EUR",
		Adults:      2,
		TravelClass: 1,
		DeepSearch:  true,
	}

	p := BuildParams(cfg, "2026-03-10")
	assert.Equal(t, Params{
		"type":          "2",
		"departure_id":  "VIE",
		"arrival_id":    "TGD",
		"outbound_date": "2026-03-10",
		"hl":            "en",
		"gl":            "at",
		"currency":      "EUR",
		"adults":        2,
		"travel_class":  1,
		"deep_search":   "true",
	}, p)

	cfg.IncludeAirlines = []string{"OS"}
	cfg.ExcludeAirlines = []string{"FR", "W6"}
	p = BuildParams(cfg, "2026-03-10")
	assert.Equal(t, "OS", p["include_airlines"])
	assert.Equal(t, "FR,W6", p["exclude_airlines"])
}

func TestParams_JSON(t *testing.T) {
	p := BuildParams(SearchConfig{Origin: "LHR", Destination: "JFK", HL: "en", GL: "us", Currency: "USD", Adults: 1, TravelClass: 1}, "2026-03-10")
	assert.Equal(t,
		`{"adults":1,"arrival_id":"JFK","currency":"USD","deep_search":"false","departure_id":"LHR","gl":"us","hl":"en","outbound_date":"2026-03-10","travel_class":1,"type":"2"}`,
		p.JSON())
}

func TestParams_ValuesExcludeSecrets(t *testing.T) {
	v := Params{"adults": 1, "deep_search": "false"}.values()
	assert.Equal(t, "1", v.Get("adults"))
	assert.Empty(t, v.Get("api_key"))
}

func TestSearchMetadataID(t *testing.T) {
	id := SearchMetadataID(gjson.Parse(`{"search_metadata": {"id": "65f0"}}`))
	require.NotNil(t, id)
	assert.Equal(t, "65f0", *id)

	assert.Nil(t, SearchMetadataID(gjson.Parse(`{"search_metadata": {"id": 5}}`)))
	assert.Nil(t, SearchMetadataID(gjson.Parse(`{"search_metadata": "x"}`)))
	assert.Nil(t, SearchMetadataID(gjson.Parse(`{}`)))
}
