// ABOUTME: Renders a DiffResult as bounded markdown for a regeneration prompt
// ABOUTME: Lists are capped at five ids and long text fields get a size-limited unified diff
package diff

import (
	"fmt"
	"strings"

	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/snapshot"
	difflib "github.com/pmezard/go-difflib/difflib"
)

const (
	// MaxListedIDs caps how many ids are printed per list.
	MaxListedIDs = 5

	// textDiffMinLen is the length at which a changed string field is
	// rendered as a line diff instead of being named only.
	textDiffMinLen = 120

	// textDiffMaxBytes bounds the inputs of a single field diff.
	textDiffMaxBytes = 8 * 1024

	// textDiffMaxLines bounds the rendered hunk lines of a single field diff.
	textDiffMaxLines = 40
)

// Format renders the result. Output size depends only on the number of
// changed primary fields, never on the size of the collections.
func Format(d *models.DiffResult) string {
	var b strings.Builder
	b.WriteString("# Changes Since Last Summary\n\n")

	if d == nil || d.IsEmpty() {
		b.WriteString("**" + models.NoChangesLine + " in the data.**\n")
		return b.String()
	}

	b.WriteString("## Summary of Changes\n")
	for _, line := range d.SummaryLines {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n")

	if len(d.PrimaryChanges) > 0 {
		b.WriteString("## Primary Record Changes\n")
		fields := make([]string, len(d.PrimaryChanges))
		for i, c := range d.PrimaryChanges {
			fields[i] = c.Field
		}
		fmt.Fprintf(&b, "Fields updated: %s\n", strings.Join(fields, ", "))
		for _, c := range d.PrimaryChanges {
			if patch, ok := textFieldDiff(c); ok {
				fmt.Fprintf(&b, "\n```diff\n%s```\n", patch)
			}
		}
		b.WriteString("\n")
	}

	for _, entityType := range snapshot.EntityTypes {
		cd, ok := d.Collections[entityType]
		if !ok || cd.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "## %s Changes\n", title(entityType))
		writeIDList(&b, "Added", cd.Added)
		writeIDList(&b, "Removed", cd.Removed)
		if n := len(cd.Modified); n > 0 {
			fmt.Fprintf(&b, "- **Modified**: %d %s\n", n, entityType)
		}
		b.WriteString("\n")
	}

	var history []string
	for _, kind := range snapshot.InteractionKinds {
		delta, ok := d.Interactions[kind]
		if !ok {
			continue
		}
		if n := len(delta.Added); n > 0 {
			history = append(history, fmt.Sprintf("%d new %s", n, kind))
		}
		if n := len(delta.Removed); n > 0 {
			history = append(history, fmt.Sprintf("%d %s removed", n, kind))
		}
	}
	if len(history) > 0 {
		b.WriteString("## Interaction History Changes\n")
		for _, line := range history {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeIDList(b *strings.Builder, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	shown := ids
	if len(shown) > MaxListedIDs {
		shown = shown[:MaxListedIDs]
	}
	fmt.Fprintf(b, "- **%s (%d)**: %s\n", label, len(ids), strings.Join(shown, ", "))
	if extra := len(ids) - len(shown); extra > 0 {
		fmt.Fprintf(b, "  ... and %d more\n", extra)
	}
}

// textFieldDiff returns a unified diff for long string fields such as
// descriptions or notes. Short values, non-strings and oversize inputs
// are skipped.
func textFieldDiff(c models.FieldChange) (string, bool) {
	oldText, okOld := c.Old.(string)
	newText, okNew := c.New.(string)
	if !okOld || !okNew {
		return "", false
	}
	if len(oldText) < textDiffMinLen && len(newText) < textDiffMinLen {
		return "", false
	}
	if len(oldText)+len(newText) > textDiffMaxBytes {
		return "", false
	}

	patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(wrap(oldText)),
		B:        difflib.SplitLines(wrap(newText)),
		FromFile: "old/" + c.Field,
		ToFile:   "new/" + c.Field,
		Context:  1,
	})
	if err != nil || patch == "" {
		return "", false
	}

	lines := strings.SplitAfter(patch, "\n")
	if len(lines) > textDiffMaxLines {
		lines = append(lines[:textDiffMaxLines], fmt.Sprintf("... diff truncated (%d more lines)\n", len(lines)-textDiffMaxLines))
	}
	return strings.Join(lines, ""), true
}

// wrap puts each sentence on its own line so single-paragraph CRM text
// still produces a readable line diff.
func wrap(s string) string {
	s = strings.ReplaceAll(s, ". ", ".\n")
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}
