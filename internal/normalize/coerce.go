package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Float converts an untyped cell value to float64.
// Returns def for nil, empty, or non-numeric input, NaN and ±Inf included.
// Never panics.
func Float(v any, def float64) float64 {
	f := toFloat(v, def)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func toFloat(v any, def float64) float64 {
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return parseFloat(x, def)
	case []byte:
		return parseFloat(string(x), def)
	case json.Number:
		return parseFloat(x.String(), def)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return def
		}
		return f.Float64
	case *string:
		if x == nil {
			return def
		}
		return parseFloat(*x, def)
	case *float64:
		if x == nil {
			return def
		}
		return *x
	case *int64:
		if x == nil {
			return def
		}
		return float64(*x)
	}
	return def
}

// Int converts an untyped cell value to int by way of Float, so "1.0"
// becomes 1. Fractions truncate toward zero. NaN and ±Inf return def.
func Int(v any, def int) int {
	f := Float(v, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(f)
}

func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
