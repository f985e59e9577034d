package companyctx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/engage/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx", "company_context.md")

	ctx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", ctx.Version)
	assert.Contains(t, ctx.Sections, "Email Engagement Learnings")
	assert.Contains(t, ctx.Sections["Email Engagement Learnings"], "under 200 words")
	assert.Equal(t, "", ctx.Sections["Learnings & Instructions"], "subsections are not part of the parent text")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestVersionFallback(t *testing.T) {
	assert.Equal(t, DefaultVersion, Version("# no version here"))
	assert.Equal(t, "2.4.9", Version("**Version**: 2.4.9"))
}

func TestUpdateSectionAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company_context.md")
	require.NoError(t, WriteDefault(path, testDay.AddDate(0, -1, 0)))

	upd, err := UpdateSection(path, "Call Strategy Learnings", "- Confirm the agenda by email first", true, testDay)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", upd.OldVersion)
	assert.Equal(t, "1.0.1", upd.NewVersion)
	assert.False(t, upd.Created)
	assert.Contains(t, upd.Diff, "+- Confirm the agenda by email first")
	assert.Contains(t, upd.Diff, "+**Version**: 1.0.1")

	ctx, err := Load(path)
	require.NoError(t, err)
	body := ctx.Sections["Call Strategy Learnings"]
	assert.Equal(t, "- Prepare three to five discovery questions\n- Confirm the agenda by email first", body)
	assert.Contains(t, ctx.Content, "**Last Updated**: 2026-03-04")
	assert.Contains(t, ctx.Content, "**Created**: 2026-02-04")
	assert.Contains(t, ctx.Sections, "LinkedIn Outreach Learnings", "following sections survive")
}

func TestUpdateSectionReplaceAndCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company_context.md")
	require.NoError(t, WriteDefault(path, testDay))

	_, err := UpdateSection(path, "Tone of Voice", "- Plain and direct", false, testDay)
	require.NoError(t, err)

	upd, err := UpdateSection(path, "Partner Program", "Resellers get 20% margin.", true, testDay)
	require.NoError(t, err)
	assert.True(t, upd.Created)
	assert.Equal(t, "1.0.2", upd.NewVersion)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	ctx := Parse(path, content)
	assert.Equal(t, "- Plain and direct", ctx.Sections["Tone of Voice"])
	assert.Equal(t, "Resellers get 20% margin.", ctx.Sections["Partner Program"])
	assert.Less(t, strings.Index(content, "## Partner Program"), strings.Index(content, "\n---\n"), "footer stays last")
	assert.NotContains(t, content, "\n\n\n")
}

func TestUpdateGeneralLearningsBeforeFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "company_context.md")
	require.NoError(t, WriteDefault(path, testDay))

	_, err := UpdateSection(path, "General Learnings", "- Mention the case study", true, testDay)
	require.NoError(t, err)

	ctx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "- Mention the case study", ctx.Sections["General Learnings"])
	assert.True(t, strings.HasSuffix(ctx.Content, "_Updated automatically from recommendation feedback._\n"))
}

func TestUpdateSectionMissingFile(t *testing.T) {
	_, err := UpdateSection(filepath.Join(t.TempDir(), "nope.md"), "X", "y", true, testDay)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDigestChangesWithContent(t *testing.T) {
	d := snapshot.NewDigester(nil)
	a := Parse("a", "# Context\n\nWe sell widgets.")
	b := Parse("b", "# Context\n\nWe sell widgets!")
	assert.NotEqual(t, a.Digest(d), b.Digest(d))
	assert.Equal(t, a.Digest(d), Parse("c", a.Content).Digest(d))
}
