package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseArgs decodes a model-supplied argument string. Empty, malformed or
// non-object payloads yield an empty map; the handler then reports any
// missing required argument itself.
func ParseArgs(raw string) map[string]any {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// intArg returns the named integer argument, or 0 when absent. Dispatch has
// already checked the type.
func intArg(args map[string]any, name string) int64 {
	v, ok := args[name]
	if !ok || v == nil {
		return 0
	}
	n, _ := toInt(v)
	return n
}

func floatArg(args map[string]any, name string) float64 {
	v, ok := args[name]
	if !ok || v == nil {
		return 0
	}
	f, _ := toFloat(v)
	return f
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}

// dateArg returns the named YYYY-MM-DD argument. Empty is allowed unless required.
func dateArg(args map[string]any, name string, required bool) (string, error) {
	s := stringArg(args, name)
	if s == "" {
		if required {
			return "", fmt.Errorf("missing required argument: %s", name)
		}
		return "", nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return "", fmt.Errorf("invalid date for %s: %q (expected YYYY-MM-DD)", name, s)
	}
	return t.Format(time.DateOnly), nil
}

// clockArg returns the named time of day normalised to HH:MM. HH:MM:SS is accepted.
func clockArg(args map[string]any, name string) (string, error) {
	s := stringArg(args, name)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("invalid time for %s: %q (expected HH:MM)", name, s)
}
