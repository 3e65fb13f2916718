package config

import (
	"context"
	"encoding/json"
)

// parseIntArray decodes a JSON integer array setting value (spec.md §3:
// "value is either a raw string or a JSON-encoded primitive/array").
func parseIntArray(raw string) ([]int, error) {
	var out []int
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}

// GetJSON unmarshals the stored value for key into v. Returns false if the
// key is absent or unparsable.
func (s *Store) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}
