package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StringOrSlice decodes a JSON value that is either a string or an array of
// strings, as "type" and "@context" often are.
type StringOrSlice []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringOrSlice{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = many
	return nil
}

// AppendUnique appends values not already present, keeping order.
func AppendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// ValidateContexts checks JSON-LD context entries: strings must be non-empty
// and objects must not nest another @context.
func ValidateContexts(contexts []any) error {
	for i, ctx := range contexts {
		switch v := ctx.(type) {
		case string:
			if v == "" {
				return fmt.Errorf("context string at index %d is empty", i)
			}
		case map[string]any:
			if _, nested := v["@context"]; nested {
				return fmt.Errorf("context object at index %d must not contain nested @context", i)
			}
		default:
			return fmt.Errorf("invalid context entry at index %d: must be string or object, got %T", i, v)
		}
	}
	return nil
}

// ToMap converts a JSON-serializable value into a generic object.
func ToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
