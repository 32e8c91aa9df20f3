// Package types defines the values, errors and host boundary shared by the
// interpreter and the builtin verbs.
//
// Script values are plain strings. Lists and maps are JSON documents stored
// in string form; the helpers here read and rewrite them.
package types

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/lemonberrylabs/bigrun/pkg/token"
)

// Nothing is the value of an absent result.
const Nothing = "nothing"

// FormatNumber renders n without a fractional part when it is integral.
func FormatNumber(n float64) string {
	return token.FormatNumber(n)
}

// ParseNumber parses s as a float. ok is false when s is not numeric.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// EncodeJSON renders v as compact JSON without HTML escaping.
func EncodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}

// DecodeJSON parses raw keeping numbers in their source form.
func DecodeJSON(raw string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// Render converts a decoded JSON value to script text: strings raw,
// numbers and booleans in literal form, everything else as JSON.
func Render(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return FormatNumber(x)
	}
	return EncodeJSON(v)
}

// ParseList splits a "[a, b, c]" text into items with surrounding quotes
// and spaces removed. Text that is not bracketed yields no items. The split
// is textual, so items containing commas are not preserved.
func ParseList(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") || len(trimmed) < 2 {
		return nil
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

// DecodeList parses raw as a JSON array.
func DecodeList(raw string) ([]any, bool) {
	v, ok := DecodeJSON(raw)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// EncodeList renders items as a JSON array of strings.
func EncodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	return EncodeJSON(items)
}

// DecodeMap parses raw as a JSON object.
func DecodeMap(raw string) (map[string]any, bool) {
	v, ok := DecodeJSON(raw)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// MapKeys returns the keys of a JSON object in sorted order.
func MapKeys(raw string) []string {
	m, ok := DecodeMap(raw)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MapValue returns the rendered value stored under key, or Nothing.
func MapValue(raw, key string) string {
	if v, ok := ObjectField(raw, key); ok {
		return v
	}
	return Nothing
}

// ObjectField looks up field in the JSON object raw.
func ObjectField(raw, field string) (string, bool) {
	m, ok := DecodeMap(raw)
	if !ok {
		return "", false
	}
	v, ok := m[field]
	if !ok {
		return "", false
	}
	return Render(v), true
}

// SetObjectField stores value as a string under field and returns the
// rewritten object. ok is false when raw is not a JSON object.
func SetObjectField(raw, field, value string) (string, bool) {
	m, ok := DecodeMap(raw)
	if !ok {
		return raw, false
	}
	m[field] = value
	return EncodeJSON(m), true
}

// IsTruthy reports whether a condition result text counts as true.
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", Nothing:
		return false
	}
	return true
}
