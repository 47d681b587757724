package config

import (
	"strings"
	"time"
)

// Config wraps a decoded YAML/JSON document for typed value extraction.
// Keys may be dotted paths ("llm.model") that walk nested maps.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a key, first as a literal top-level key and then as a
// dotted path through nested maps.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var cur any = c.data
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// asMap accepts the map shapes produced by yaml.v3 and encoding/json.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// Sub returns the nested section at key, or an empty Config.
func (c Config) Sub(key string) Config {
	v, ok := c.lookup(key)
	if !ok {
		return New(nil)
	}
	m, ok := asMap(v)
	if !ok {
		return New(nil)
	}
	return New(m)
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (c Config) String(key, defaultVal string) string {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (c Config) Bool(key string, defaultVal bool) bool {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
// Floats convert only when they have no fractional part.
func (c Config) Int(key string, defaultVal int) int {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not numeric.
func (c Config) Float(key string, defaultVal float64) float64 {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string slice for key, or defaultVal if missing or not convertible.
// A single string is returned as a one-element slice.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []string:
		return val
	case string:
		return []string{val}
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Has returns true if the key exists in the config.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}
