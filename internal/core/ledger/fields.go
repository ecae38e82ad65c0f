package ledger

import (
	"encoding/json"
	"strconv"
)

// Fields is a decoded STObject: field name to JSON-shaped value.
type Fields map[string]any

// Has reports whether the field is present.
func (f Fields) Has(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f[name]
	return ok
}

// String returns a string field or "".
func (f Fields) String(name string) string {
	if f == nil {
		return ""
	}
	s, _ := f[name].(string)
	return s
}

// Uint32 returns a numeric field, whatever numeric shape the decoder produced.
func (f Fields) Uint32(name string) (uint32, bool) {
	if f == nil {
		return 0, false
	}
	n, ok := ToUint64(f[name])
	if !ok || n > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(n), true
}

// Object returns a nested object field or nil.
func (f Fields) Object(name string) Fields {
	if f == nil {
		return nil
	}
	return AsFields(f[name])
}

// AsFields converts a decoded nested object into Fields.
func AsFields(v any) Fields {
	switch m := v.(type) {
	case Fields:
		return m
	case map[string]any:
		return Fields(m)
	}
	return nil
}

// ToUint64 converts the numeric shapes produced by JSON and binary decoding.
func ToUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	}
	return 0, false
}
