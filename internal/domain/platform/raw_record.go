package platform

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RawRecord is a single platform-native record as returned by a fetch
// collaborator. The integration core treats it as an opaque map; the typed
// accessors below tolerate the loose encodings platform APIs actually emit
// (numbers as strings, ints as float64 after JSON decoding, and so on).
type RawRecord map[string]any

// String returns the value under key coerced to a string, or "" if absent.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a fractional part so identifiers survive round-tripping.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Decimal returns the value under key as a decimal, reporting whether the
// key was present and parseable.
func (r RawRecord) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return decimal.Decimal{}, false
	}
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Decimal{}, false
	}
}

// Int returns the value under key as an int64, reporting presence.
func (r RawRecord) Int(key string) (int64, bool) {
	d, ok := r.Decimal(key)
	if !ok {
		return 0, false
	}
	return d.IntPart(), true
}

// Map returns a nested object under key, or nil if absent or not an object.
func (r RawRecord) Map(key string) RawRecord {
	if v, ok := r[key].(map[string]any); ok {
		return RawRecord(v)
	}
	return nil
}

// Slice returns a nested array of objects under key.
func (r RawRecord) Slice(key string) []RawRecord {
	v, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]RawRecord, 0, len(v))
	for _, item := range v {
		if m, ok := item.(map[string]any); ok {
			out = append(out, RawRecord(m))
		}
	}
	return out
}

// Has reports whether key is present with a non-nil value.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}
