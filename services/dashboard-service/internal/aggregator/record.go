package aggregator

import (
	"encoding/json"
	"math"
)

// Record is one loosely-typed feed entry. Feeds originate from several
// producers with drifting schemas, so every read goes through a safe
// accessor with an explicit default instead of assuming a field exists.
type Record map[string]any

func (r Record) String(key, def string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Number returns the field as a finite float64. Missing, non-numeric, and
// non-finite values all yield the default.
func (r Record) Number(key string, def float64) float64 {
	if f, ok := r.number(key); ok {
		return f
	}
	return def
}

// HasNumber reports whether the field is present and a finite number.
func (r Record) HasNumber(key string) bool {
	_, ok := r.number(key)
	return ok
}

func (r Record) number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
