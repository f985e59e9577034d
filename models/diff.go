// ABOUTME: Data models for snapshot deltas
// ABOUTME: Defines FieldChange, CollectionDiff, InteractionDelta and DiffResult
package models

// NoChangesLine is the single summary line of an empty diff.
const NoChangesLine = "No significant changes detected"

// FieldChange is one changed top-level field of the primary record.
// Old or New is nil when the field was added or removed.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// CollectionDiff holds identities of added, removed and modified items in
// one related-entity collection.
type CollectionDiff struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

func (c CollectionDiff) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// InteractionDelta holds ids of added and removed interaction items.
type InteractionDelta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

func (d InteractionDelta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffResult is the delta between two versions of the same snapshot.
// Collections and Interactions only carry non-empty entries.
type DiffResult struct {
	PrimaryChanges []FieldChange               `json:"changed_primary_fields"`
	Collections    map[string]CollectionDiff   `json:"collection_diffs"`
	Interactions   map[string]InteractionDelta `json:"interaction_deltas"`
	SummaryLines   []string                    `json:"summary_lines"`
}

// IsEmpty reports whether no business-relevant change was found.
func (d *DiffResult) IsEmpty() bool {
	if len(d.PrimaryChanges) > 0 {
		return false
	}
	for _, c := range d.Collections {
		if !c.IsEmpty() {
			return false
		}
	}
	for _, i := range d.Interactions {
		if !i.IsEmpty() {
			return false
		}
	}
	return true
}
