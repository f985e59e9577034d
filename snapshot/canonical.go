// ABOUTME: Canonicalization of loosely-typed nested trees before hashing or diffing
// ABOUTME: Recursively strips volatile fields and encodes maps with sorted keys
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultVolatileFields are field names that change on every fetch without
// reflecting a business change. They are excluded from hashing and diffing
// at every nesting level.
var DefaultVolatileFields = []string{
	"updated_at", "updatedAt", "modified_at", "modifiedAt",
	"created_at", "createdAt", "last_fetched", "lastFetched",
	"last_modified", "lastModified", "timestamp", "fetched_at",
	"_metadata", "cache_time", "cacheTime",
	"metadata", "enrichment_timestamp", "duration_ms", "cache_hit_rate",
}

// Canonicalizer strips a fixed set of field names from nested trees and
// produces a key-sorted encoding. It is immutable after construction and
// safe for concurrent use.
type Canonicalizer struct {
	exclude map[string]struct{}
}

// NewCanonicalizer builds a canonicalizer excluding the given field names.
// A nil slice selects DefaultVolatileFields; an empty non-nil slice
// excludes nothing.
func NewCanonicalizer(volatile []string) *Canonicalizer {
	if volatile == nil {
		volatile = DefaultVolatileFields
	}
	exclude := make(map[string]struct{}, len(volatile))
	for _, f := range volatile {
		exclude[f] = struct{}{}
	}
	return &Canonicalizer{exclude: exclude}
}

// Excludes reports whether a field name is stripped.
func (c *Canonicalizer) Excludes(field string) bool {
	_, ok := c.exclude[field]
	return ok
}

// Canonicalize returns a deep copy of v with volatile fields removed. Maps
// become map[string]any and lists become []any; scalars are returned as-is.
// Values of other types are round-tripped through JSON first.
func (c *Canonicalizer) Canonicalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return t
	case Snapshot:
		return c.canonicalMap(t)
	case map[string]any:
		return c.canonicalMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, val := range t {
			if !c.Excludes(k) {
				m[k] = val
			}
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = c.Canonicalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = c.canonicalMap(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return string(data)
		}
		return c.Canonicalize(generic)
	}
}

func (c *Canonicalizer) canonicalMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		if c.Excludes(k) {
			continue
		}
		out[k] = c.Canonicalize(val)
	}
	return out
}

// Encode canonicalizes v and writes it as compact JSON with map keys in
// lexical order. The output does not depend on Go's map iteration order or
// on the encoder's own key ordering.
func (c *Canonicalizer) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, c.Canonicalize(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Equal reports whether two values are identical after canonicalization.
func (c *Canonicalizer) Equal(a, b any) bool {
	ea, errA := c.Encode(a)
	eb, errB := c.Encode(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode %T: %w", t, err)
		}
		buf.Write(data)
	}
	return nil
}
