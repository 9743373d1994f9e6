package models

import "fmt"

// RawRecord is the loosely-shaped per-supplier record produced by the
// extraction layer. Every key is optional and values may be strings,
// nested mappings, or sequences. RawRecord must not leak past the
// processor: everything downstream works with Product.
type RawRecord map[string]any

// String returns the value for the first key that holds a non-empty
// string. Non-string scalars are stringified.
func (r RawRecord) String(keys ...string) string {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case fmt.Stringer:
			if s.String() != "" {
				return s.String()
			}
		case float64, int, int64, bool:
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}

// StringSlice returns the value for the first matching key as a slice
// of strings. A bare string becomes a one-element slice, matching the
// extraction layer's habit of emitting image_url as either form.
func (r RawRecord) StringSlice(keys ...string) []string {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case []string:
			return s
		case string:
			if s == "" {
				return nil
			}
			return []string{s}
		case []any:
			out := make([]string, 0, len(s))
			for _, item := range s {
				if str, ok := item.(string); ok && str != "" {
					out = append(out, str)
				}
			}
			return out
		}
	}
	return nil
}

// StringMap returns the value for key as a flat string map. Nested
// values that are not strings are stringified; nil maps come back empty.
func (r RawRecord) StringMap(key string) map[string]string {
	out := make(map[string]string)
	v, ok := r[key]
	if !ok || v == nil {
		return out
	}
	switch m := v.(type) {
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	case map[string]any:
		for k, val := range m {
			if val == nil {
				continue
			}
			if s, ok := val.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
