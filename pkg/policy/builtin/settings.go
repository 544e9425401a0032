package builtin

import (
	"fmt"
)

// stringSlice reads a []string setting that YAML decodes as []any.
func stringSlice(settings map[string]any, key string) ([]string, error) {
	raw, ok := settings[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("setting %q: expected a list of strings, got %T", key, raw)
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("setting %q[%d]: expected a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// stringValue reads a string setting, returning fallback when absent.
func stringValue(settings map[string]any, key, fallback string) (string, error) {
	raw, ok := settings[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("setting %q: expected a string, got %T", key, raw)
	}
	return s, nil
}

// intValue reads an integer setting, returning fallback when absent. YAML
// decodes numbers as int; JSON decodes them as float64.
func intValue(settings map[string]any, key string, fallback int) (int, error) {
	raw, ok := settings[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("setting %q: expected an integer, got %T", key, raw)
	}
}
