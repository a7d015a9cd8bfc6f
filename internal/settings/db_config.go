package settings

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot holds the in-memory copy of DB-backed settings.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// current stores the latest snapshot atomically.
var current atomic.Value // stores snapshot

func init() {
	current.Store(snapshot{values: map[string]json.RawMessage{}})
}

// Store replaces the in-memory snapshot of DB-backed settings.
func Store(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next[key] = bytes.Clone(v)
	}
	current.Store(snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// UpdatedAt returns the newest update timestamp in the snapshot.
func UpdatedAt() time.Time {
	return load().updatedAt
}

// Value returns a copy of the raw value for a key.
func Value(key string) (json.RawMessage, bool) {
	val, ok := load().values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(val), true
}

// All returns a copy of every stored value.
func All() map[string]json.RawMessage {
	cfg := load()
	out := make(map[string]json.RawMessage, len(cfg.values))
	for k, v := range cfg.values {
		out[k] = bytes.Clone(v)
	}
	return out
}

// String returns the setting as a string or fallback when unset or blank.
func String(key, fallback string) string {
	raw, ok := scalar(key)
	if !ok || raw == "" {
		return fallback
	}
	return raw
}

// Int returns the setting as an int or fallback when unset or unparsable.
func Int(key string, fallback int) int {
	raw, ok := scalar(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, errFloat := strconv.ParseFloat(raw, 64)
		if errFloat != nil {
			return fallback
		}
		return int(f)
	}
	return n
}

// Float returns the setting as a float64 or fallback when unset or unparsable.
func Float(key string, fallback float64) float64 {
	raw, ok := scalar(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

// scalar unwraps a JSON number, string, or {"value": ...} object into text.
func scalar(key string) (string, bool) {
	raw, ok := Value(key)
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false
	}
	if obj, isObj := decoded.(map[string]any); isObj {
		decoded = obj["value"]
	}
	switch v := decoded.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// load returns the current snapshot with safe defaults.
func load() snapshot {
	cfg, ok := current.Load().(snapshot)
	if !ok || cfg.values == nil {
		return snapshot{updatedAt: cfg.updatedAt, values: map[string]json.RawMessage{}}
	}
	return cfg
}
