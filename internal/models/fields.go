package models

import (
	"strings"
	"time"
)

// fields reads loosely typed document data. Firestore returns int64 for
// integers and []interface{} for arrays, so every getter accepts the shapes
// either store backend produces.
type fields map[string]interface{}

func (f fields) getString(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

func (f fields) getFloat(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}

func (f fields) getInt(key string) int {
	switch v := f[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (f fields) getBool(key string) bool {
	v, _ := f[key].(bool)
	return v
}

func (f fields) getTime(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (f fields) getTimePtr(key string) *time.Time {
	if _, ok := f[key]; !ok {
		return nil
	}
	t := f.getTime(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (f fields) getStrings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func (f fields) getMaps(key string) []fields {
	switch v := f[key].(type) {
	case []map[string]interface{}:
		out := make([]fields, 0, len(v))
		for _, m := range v {
			out = append(out, fields(m))
		}
		return out
	case []interface{}:
		out := make([]fields, 0, len(v))
		for _, x := range v {
			if m, ok := x.(map[string]interface{}); ok {
				out = append(out, fields(m))
			}
		}
		return out
	}
	return nil
}

// putString sets key only for non-empty values, mirroring omitempty.
func putString(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
