// ABOUTME: Tests for snapshot canonicalization and digests
// ABOUTME: Covers volatile-field exclusion, key-order insensitivity and accessors
package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		"primary_type": "deal",
		"primary_record": map[string]any{
			"id":         "deal-42",
			"name":       "Acme renewal",
			"amount":     float64(12000),
			"updated_at": "2024-05-01T10:00:00Z",
		},
		"related_entities": map[string]any{
			"contacts": []any{
				map[string]any{"id": float64(1), "email": "a@acme.com", "lastModified": "x"},
			},
		},
		"metadata": map[string]any{
			"enrichment_timestamp": "2024-05-01T10:00:00Z",
			"duration_ms":          float64(812),
		},
	}
}

func TestDigestIgnoresVolatileFields(t *testing.T) {
	d := NewDigester(nil)

	a := sampleSnapshot()
	b := sampleSnapshot()
	b["metadata"] = map[string]any{"enrichment_timestamp": "2025-01-01T00:00:00Z", "cache_hit_rate": 0.5}
	b["primary_record"].(map[string]any)["updated_at"] = "2025-01-01T00:00:00Z"

	da, err := d.Digest("snapshot_hash", a)
	require.NoError(t, err)
	db, err := d.Digest("snapshot_hash", b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
}

func TestDigestDetectsBusinessChange(t *testing.T) {
	d := NewDigester(nil)

	a := sampleSnapshot()
	b := sampleSnapshot()
	b["primary_record"].(map[string]any)["amount"] = float64(15000)

	da, _ := d.Digest("snapshot_hash", a)
	db, _ := d.Digest("snapshot_hash", b)

	assert.NotEqual(t, da, db)
}

func TestDigestKeyOrderInsensitive(t *testing.T) {
	d := NewDigester(nil)

	a, err := Parse([]byte(`{"primary_record":{"b":2,"a":1},"primary_type":"deal"}`))
	require.NoError(t, err)
	b, err := Parse([]byte(`{"primary_type":"deal","primary_record":{"a":1,"b":2}}`))
	require.NoError(t, err)

	da, _ := d.Digest("snapshot_hash", a)
	db, _ := d.Digest("snapshot_hash", b)
	assert.Equal(t, da, db)
}

func TestDigestNameSeparatesDomains(t *testing.T) {
	d := NewDigester(nil)

	a, _ := d.Digest("prompt_hash", "same text")
	b, _ := d.Digest("company_context_hash", "same text")
	assert.NotEqual(t, a, b)
}

func TestDigestTextAbsent(t *testing.T) {
	d := NewDigester(nil)

	assert.Equal(t, Digest(""), d.Text("campaign_context_hash", ""))
	assert.NotEmpty(t, d.Text("campaign_context_hash", "Q3 push"))

	nilDigest, err := d.Digest("x", nil)
	require.NoError(t, err)
	assert.Empty(t, nilDigest)
}

func TestDigestOneCharacterChange(t *testing.T) {
	d := NewDigester(nil)

	a := d.Text("company_context_hash", "We sell widgets.")
	b := d.Text("company_context_hash", "We sell widgets!")
	assert.NotEqual(t, a, b)
}

func TestCanonicalEncodeSortsKeys(t *testing.T) {
	c := NewCanonicalizer([]string{})
	enc, err := c.Encode(map[string]any{"z": 1, "a": []any{map[string]any{"y": true, "b": nil}}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"b":null,"y":true}],"z":1}`, string(enc))
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	c := NewCanonicalizer(nil)
	s := sampleSnapshot()

	_ = c.Canonicalize(s)

	_, hasMeta := s["metadata"]
	assert.True(t, hasMeta)
	assert.Contains(t, s["primary_record"].(map[string]any), "updated_at")
}

func TestCanonicalizeStructValues(t *testing.T) {
	type rec struct {
		ID        string `json:"id"`
		UpdatedAt string `json:"updated_at"`
	}
	c := NewCanonicalizer(nil)
	out := c.Canonicalize(rec{ID: "x", UpdatedAt: "now"})
	assert.Equal(t, map[string]any{"id": "x"}, out)
}

func TestEqualTreatsIntAndFloatAlike(t *testing.T) {
	c := NewCanonicalizer(nil)
	assert.True(t, c.Equal(map[string]any{"n": 1}, map[string]any{"n": float64(1)}))
	assert.False(t, c.Equal(map[string]any{"n": 1}, map[string]any{"n": 2}))
}

func TestAccessors(t *testing.T) {
	s := sampleSnapshot()

	assert.Equal(t, "deal", s.PrimaryType())
	assert.Equal(t, "deal-42", s.PrimaryID())
	assert.Len(t, s.Collection(EntityContacts), 1)
	assert.Empty(t, s.Collection(EntityDeals))
	assert.Empty(t, s.Interactions(InteractionNotes))

	empty := Snapshot{}
	assert.Equal(t, "unknown", empty.PrimaryType())
	assert.Equal(t, "unknown", empty.PrimaryID())
	assert.Empty(t, empty.PrimaryRecord())
}

func TestIdentity(t *testing.T) {
	_, ok := Snapshot{"primary_record": map[string]any{"stage": "demo"}}.Identity()
	assert.False(t, ok)

	id, ok := Snapshot{"primary_record": map[string]any{"id": "deal-1"}}.Identity()
	assert.True(t, ok)
	assert.Equal(t, "deal-1", id)
}

func TestPrimaryIDFallsBackToEmail(t *testing.T) {
	s := Snapshot{"primary_type": "contact", "primary_record": map[string]any{"email": "jo@example.com"}}
	assert.Equal(t, "jo@example.com", s.PrimaryID())
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "1", ScalarString(float64(1)))
	assert.Equal(t, "1.5", ScalarString(1.5))
	assert.Equal(t, "abc", ScalarString("abc"))
	assert.Equal(t, "7", ScalarString(7))
	assert.Equal(t, "true", ScalarString(true))
}
