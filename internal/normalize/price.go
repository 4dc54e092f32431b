package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// numberToken matches runs of digits optionally separated by dots or commas.
var numberToken = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// priceFields are tried in order; the first one present decides the price.
var priceFields = []string{"price", "total_price", "price_amount"}

// extractPrice resolves an entry's price and currency. ok is false when no
// price could be resolved and the entry must be dropped.
func extractPrice(entry gjson.Result, defaultCurrency string) (float64, *string, bool) {
	for _, key := range priceFields {
		v := entry.Get(key)
		if v.Exists() {
			return parsePrice(v, optional(defaultCurrency))
		}
	}
	return 0, optional(defaultCurrency), false
}

// parsePrice dispatches on the JSON type of a price value:
//   - number: taken as-is
//   - string: first numeric token after removing thousands separators
//   - object: amount/value resolved recursively, currency/currency_code preferred
//
// Anything else (null, booleans, arrays) does not resolve.
func parsePrice(v gjson.Result, currency *string) (float64, *string, bool) {
	switch {
	case v.Type == gjson.Number:
		return v.Num, currency, true
	case v.Type == gjson.String:
		f, ok := parsePriceText(v.Str)
		return f, currency, ok
	case v.IsObject():
		if c := firstTruthy(v, "currency", "currency_code"); c.Type == gjson.String {
			currency = &c.Str
		}
		amount := firstTruthy(v, "amount", "value")
		switch amount.Type {
		case gjson.Number:
			return amount.Num, currency, true
		case gjson.String:
			f, ok := parsePriceText(amount.Str)
			return f, currency, ok
		}
		return 0, currency, false
	}
	return 0, currency, false
}

func parsePriceText(s string) (float64, bool) {
	token, ok := findNumberToken(strings.ReplaceAll(s, ",", ""))
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func findNumberToken(s string) (string, bool) {
	m := numberToken.FindString(s)
	return m, m != ""
}

// firstTruthy returns the first of keys whose value is truthy, or the value
// of the last key when none is.
func firstTruthy(obj gjson.Result, keys ...string) gjson.Result {
	var v gjson.Result
	for _, k := range keys {
		v = obj.Get(k)
		if truthy(v) {
			return v
		}
	}
	return v
}

// truthy treats null, false, zero, empty strings and empty containers as unset.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		nonEmpty := false
		v.ForEach(func(_, _ gjson.Result) bool {
			nonEmpty = true
			return false
		})
		return nonEmpty
	}
	return false
}

// intValue reports whether v is a JSON integer literal (no fraction or exponent).
func intValue(v gjson.Result) (int, bool) {
	if v.Type != gjson.Number || strings.ContainsAny(v.Raw, ".eE") {
		return 0, false
	}
	n, err := strconv.Atoi(v.Raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stringField(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
