// ABOUTME: Snapshot type for point-in-time CRM enrichment payloads
// ABOUTME: Provides accessors for the primary record, related entities and interaction history
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Snapshot is a nested map/list/scalar tree produced by the enrichment
// subsystem. It is never mutated after construction; new data replaces it
// wholesale.
type Snapshot map[string]any

// Top-level snapshot keys.
const (
	KeyPrimaryType        = "primary_type"
	KeyPrimaryRecord      = "primary_record"
	KeyRelatedEntities    = "related_entities"
	KeyInteractionHistory = "interaction_history"
	KeyMetadata           = "metadata"
)

// Related entity collections compared by the diff engine.
const (
	EntityContacts  = "contacts"
	EntityCompanies = "companies"
	EntityDeals     = "deals"
)

// Interaction kinds compared by the diff engine.
const (
	InteractionNotes = "notes"
	InteractionTasks = "tasks"
)

// EntityTypes lists related entity collections in render order.
var EntityTypes = []string{EntityContacts, EntityCompanies, EntityDeals}

// InteractionKinds lists interaction history kinds in render order.
var InteractionKinds = []string{InteractionNotes, InteractionTasks}

// Parse decodes a JSON document into a Snapshot.
func Parse(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Load reads a snapshot from a JSON file.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return Parse(data)
}

// PrimaryType returns the primary entity type (deal, contact, company).
func (s Snapshot) PrimaryType() string {
	if t, ok := s[KeyPrimaryType].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// PrimaryRecord returns the top-level attribute map of the primary entity.
// A missing or malformed record is returned as an empty map.
func (s Snapshot) PrimaryRecord() map[string]any {
	return asMap(s[KeyPrimaryRecord])
}

// PrimaryID returns the primary record identity: id, then email, then "unknown".
func (s Snapshot) PrimaryID() string {
	if id, ok := s.Identity(); ok {
		return id
	}
	return "unknown"
}

// Identity returns the primary record's id or email, and false when it has
// neither.
func (s Snapshot) Identity() (string, bool) {
	rec := s.PrimaryRecord()
	if id, ok := rec["id"]; ok && id != nil {
		return ScalarString(id), true
	}
	if email, ok := rec["email"]; ok && email != nil {
		return ScalarString(email), true
	}
	return "", false
}

// Collection returns the related entity list for an entity type. Missing
// collections are empty, never an error.
func (s Snapshot) Collection(entityType string) []any {
	return asList(asMap(s[KeyRelatedEntities])[entityType])
}

// Interactions returns the interaction history list for a kind (notes, tasks).
func (s Snapshot) Interactions(kind string) []any {
	return asList(asMap(s[KeyInteractionHistory])[kind])
}

// ScalarString renders an identity value as a string. Strings are returned
// as-is; numbers and booleans use their JSON form so 1 and 1.0 agree.
func ScalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func asMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case Snapshot:
		return t
	default:
		return map[string]any{}
	}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return nil
	}
}
