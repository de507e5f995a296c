package mcpserver

import (
	"fmt"
	"math"
	"strings"

	"github.com/gyeh/clinscore/internal/engine"
	"github.com/gyeh/clinscore/internal/normalize"
)

// args is a tool call's argument object.
type args map[string]any

func (a args) present(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

func (a args) str(key string) string {
	if !a.present(key) {
		return ""
	}
	if s, ok := a[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(a[key]))
}

func (a args) number(key string) (*float64, error) {
	if !a.present(key) {
		return nil, nil
	}
	v := normalize.Float(a[key], math.NaN())
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a number, got %v", key, a[key])
	}
	return &v, nil
}

func (a args) integer(key string, def int) (int, error) {
	v, err := a.number(key)
	if err != nil || v == nil {
		return def, err
	}
	if *v != math.Trunc(*v) {
		return 0, fmt.Errorf("%s must be a whole number, got %v", key, *v)
	}
	return int(*v), nil
}

func (a args) boolean(key string, def bool) (bool, error) {
	if !a.present(key) {
		return def, nil
	}
	switch v := a[key].(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%s must be a boolean, got %v", key, a[key])
}

// strings accepts an array of strings or a single comma-separated string.
// A missing key returns nil.
func (a args) strings(key string) ([]string, error) {
	if !a.present(key) {
		return nil, nil
	}
	switch v := a[key].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be an array of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s must be an array of strings", key)
}

func (a args) dateFilter(key string) (engine.DateFilter, error) {
	if !a.present(key) {
		return engine.DateFilter{}, nil
	}
	m, ok := a[key].(map[string]any)
	if !ok {
		return engine.DateFilter{}, fmt.Errorf("%s must be an object with start and end", key)
	}
	sub := args(m)
	return engine.DateFilter{Start: sub.str("start"), End: sub.str("end")}, nil
}

func invalidArg(err error) engine.Result {
	return engine.Invalid("Invalid parameters", err.Error())
}

var sensitiveKeys = []string{"password", "token", "key", "secret"}

// redacted copies a for logging, masking values whose key looks sensitive.
func (a args) redacted() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		lk := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lk, s) {
				v = "***"
				break
			}
		}
		out[k] = v
	}
	return out
}
