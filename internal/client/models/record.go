package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Identity field names shared by requests, responses and models.
const (
	FieldID        = "id"
	FieldRequestID = "request_id"
	FieldQueryHash = "query_hash"
	FieldAccountID = "account_id"
	FieldUpdatedAt = "updated_at"
)

// Getter is implemented by anything a Collection can search by key.
type Getter interface {
	Get(key string) (any, bool)
}

// Record is a raw API row: a mapping from field name to scalar or structured value.
type Record map[string]any

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int64 returns the value under key as int64. JSON numbers, Go integers,
// floats with no fractional part and numeric strings are accepted.
func (r Record) Int64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// String returns the value under key formatted as a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// ToInt64 converts the numeric representations produced by encoding/json
// (with or without UseNumber) and by callers into int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// SameValue reports whether a and b denote the same value. Scalars are
// compared by their canonical text so that 42, int64(42), float64(42) and
// json.Number("42") match; everything else falls back to reflect.DeepEqual.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := scalarText(a)
	bs, bok := scalarText(b)
	if aok && bok {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case json.Number:
		return normalizeNumber(s), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

// normalizeNumber keeps integers exact; only fractional or exponent forms
// go through float64.
func normalizeNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
