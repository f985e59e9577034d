// ABOUTME: Structured delta between two versions of the same CRM snapshot
// ABOUTME: Compares the primary record, related entity collections and interaction history
package diff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/snapshot"
)

// Engine computes DiffResults. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	canon *snapshot.Canonicalizer
}

// NewEngine builds an engine that strips the same volatile fields as the
// cache digests. A nil canonicalizer uses the defaults.
func NewEngine(canon *snapshot.Canonicalizer) *Engine {
	if canon == nil {
		canon = snapshot.NewCanonicalizer(nil)
	}
	return &Engine{canon: canon}
}

// Compute diffs old against new. A nil old snapshot is treated as empty.
func (e *Engine) Compute(old, new snapshot.Snapshot) *models.DiffResult {
	if old == nil {
		old = snapshot.Snapshot{}
	}
	if new == nil {
		new = snapshot.Snapshot{}
	}

	result := &models.DiffResult{
		Collections:  make(map[string]models.CollectionDiff),
		Interactions: make(map[string]models.InteractionDelta),
	}

	result.PrimaryChanges = e.comparePrimary(old.PrimaryRecord(), new.PrimaryRecord())
	if len(result.PrimaryChanges) > 0 {
		fields := make([]string, len(result.PrimaryChanges))
		for i, c := range result.PrimaryChanges {
			fields[i] = c.Field
		}
		result.SummaryLines = append(result.SummaryLines, "Primary record updated: "+strings.Join(fields, ", "))
	}

	for _, entityType := range snapshot.EntityTypes {
		cd := e.compareCollection(old.Collection(entityType), new.Collection(entityType))
		if cd.IsEmpty() {
			continue
		}
		result.Collections[entityType] = cd
		result.SummaryLines = append(result.SummaryLines, fmt.Sprintf("%s: %s", title(entityType), collectionSummary(cd)))
	}

	for _, kind := range snapshot.InteractionKinds {
		delta := compareInteractions(old.Interactions(kind), new.Interactions(kind))
		if delta.IsEmpty() {
			continue
		}
		result.Interactions[kind] = delta
		if n := len(delta.Added); n > 0 {
			result.SummaryLines = append(result.SummaryLines, fmt.Sprintf("%d new %s", n, kind))
		}
		if n := len(delta.Removed); n > 0 {
			result.SummaryLines = append(result.SummaryLines, fmt.Sprintf("%d %s removed", n, kind))
		}
	}

	if len(result.SummaryLines) == 0 {
		result.SummaryLines = []string{models.NoChangesLine}
	}
	return result
}

// comparePrimary is a shallow field-by-field diff; nested values compare
// by deep equality after canonicalization. Fields come back sorted.
func (e *Engine) comparePrimary(old, new map[string]any) []models.FieldChange {
	keys := make(map[string]struct{}, len(old)+len(new))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range new {
		keys[k] = struct{}{}
	}

	var changes []models.FieldChange
	for _, k := range sortedKeys(keys) {
		if e.canon.Excludes(k) {
			continue
		}
		oldVal, newVal := e.canon.Canonicalize(old[k]), e.canon.Canonicalize(new[k])
		if e.canon.Equal(oldVal, newVal) {
			continue
		}
		changes = append(changes, models.FieldChange{Field: k, Old: oldVal, New: newVal})
	}
	return changes
}

type indexed struct {
	order []string
	items map[string]any
}

// index keys canonicalized items by identity, keeping the first
// occurrence of a duplicated identity.
func (e *Engine) index(list []any) indexed {
	idx := indexed{items: make(map[string]any, len(list))}
	for _, raw := range list {
		item := e.canon.Canonicalize(raw)
		id := e.identity(item)
		if _, dup := idx.items[id]; dup {
			continue
		}
		idx.order = append(idx.order, id)
		idx.items[id] = item
	}
	return idx
}

// identity is the item's id, else its email, else a structural hash of
// the canonical item so identical anonymous items still match.
func (e *Engine) identity(item any) string {
	if m, ok := item.(map[string]any); ok {
		if id, ok := m["id"]; ok && id != nil {
			return snapshot.ScalarString(id)
		}
		if email, ok := m["email"]; ok && email != nil {
			return snapshot.ScalarString(email)
		}
	}
	enc, err := e.canon.Encode(item)
	if err != nil {
		enc = []byte(fmt.Sprintf("%v", item))
	}
	sum := sha256.Sum256(enc)
	return "sha256:" + hex.EncodeToString(sum[:6])
}

func (e *Engine) compareCollection(oldList, newList []any) models.CollectionDiff {
	oldIdx, newIdx := e.index(oldList), e.index(newList)

	var cd models.CollectionDiff
	for _, id := range newIdx.order {
		oldItem, existed := oldIdx.items[id]
		switch {
		case !existed:
			cd.Added = append(cd.Added, id)
		case !e.canon.Equal(oldItem, newIdx.items[id]):
			cd.Modified = append(cd.Modified, id)
		}
	}
	for _, id := range oldIdx.order {
		if _, kept := newIdx.items[id]; !kept {
			cd.Removed = append(cd.Removed, id)
		}
	}
	return cd
}

// compareInteractions tracks additions and removals by id only. Items
// without an id are skipped and edits are not detected.
func compareInteractions(oldList, newList []any) models.InteractionDelta {
	oldIDs, oldOrder := interactionIDs(oldList)
	newIDs, newOrder := interactionIDs(newList)

	var delta models.InteractionDelta
	for _, id := range newOrder {
		if !oldIDs[id] {
			delta.Added = append(delta.Added, id)
		}
	}
	for _, id := range oldOrder {
		if !newIDs[id] {
			delta.Removed = append(delta.Removed, id)
		}
	}
	return delta
}

func interactionIDs(list []any) (map[string]bool, []string) {
	ids := make(map[string]bool, len(list))
	var order []string
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		v, ok := m["id"]
		if !ok || v == nil {
			continue
		}
		id := snapshot.ScalarString(v)
		if id == "" || ids[id] {
			continue
		}
		ids[id] = true
		order = append(order, id)
	}
	return ids, order
}

func collectionSummary(cd models.CollectionDiff) string {
	var parts []string
	if n := len(cd.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(cd.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(cd.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
