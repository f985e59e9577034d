// ABOUTME: Company context markdown file: load, section lookup, versioned section updates
// ABOUTME: Updates edit the file in place, bump the patch version and return a unified diff
package companyctx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/engage/snapshot"
	difflib "github.com/pmezard/go-difflib/difflib"
)

// DigestName is the dependency name the company context is digested under.
const DigestName = "company_context_hash"

const DefaultVersion = "1.0.0"

var (
	versionPattern     = regexp.MustCompile(`\*\*Version\*\*:\s*(\d+)\.(\d+)\.(\d+)`)
	lastUpdatedPattern = regexp.MustCompile(`\*\*Last Updated\*\*:\s*\S+`)
)

// ErrNotFound is returned by UpdateSection when the file does not exist.
var ErrNotFound = errors.New("company context file not found")

// Context is a loaded company context file.
type Context struct {
	Path    string
	Content string
	Version string
	// Sections maps each "## " or "### " heading to its trimmed body.
	Sections map[string]string
}

// Digest returns the content digest used for cache dependencies.
func (c *Context) Digest(d *snapshot.Digester) snapshot.Digest {
	return d.Text(DigestName, c.Content)
}

// Load reads path, creating the default template when it is missing.
func Load(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path, time.Now()); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read company context: %w", err)
	}
	return Parse(path, string(data)), nil
}

// Parse builds a Context from file content.
func Parse(path, content string) *Context {
	return &Context{
		Path:     path,
		Content:  content,
		Version:  Version(content),
		Sections: Sections(content),
	}
}

// Version extracts the **Version** field, or DefaultVersion.
func Version(content string) string {
	m := versionPattern.FindStringSubmatch(content)
	if m == nil {
		return DefaultVersion
	}
	return m[1] + "." + m[2] + "." + m[3]
}

type heading struct {
	line  int
	level int
	name  string
}

func parseHeading(line string) (int, string, bool) {
	switch {
	case strings.HasPrefix(line, "### "):
		return 3, strings.TrimSpace(line[4:]), true
	case strings.HasPrefix(line, "## "):
		return 2, strings.TrimSpace(line[3:]), true
	}
	return 0, "", false
}

func headings(lines []string) []heading {
	var hs []heading
	for i, line := range lines {
		if level, name, ok := parseHeading(line); ok {
			hs = append(hs, heading{line: i, level: level, name: name})
		}
	}
	return hs
}

// ownEnd returns the index just past the text directly under hs[i],
// stopping at the next heading of any level so subsections stay intact.
func ownEnd(lines []string, hs []heading, i int) int {
	if i+1 < len(hs) {
		return hs[i+1].line
	}
	return footerStart(lines)
}

// footerStart finds a trailing "---" rule, which stays last in the file.
func footerStart(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "---" {
			return i
		}
		if _, _, ok := parseHeading(lines[i]); ok {
			break
		}
	}
	return len(lines)
}

// Sections maps each heading to its own text up to the next heading of
// any level.
func Sections(content string) map[string]string {
	lines := strings.Split(content, "\n")
	hs := headings(lines)
	sections := make(map[string]string, len(hs))
	for i, h := range hs {
		end := ownEnd(lines, hs, i)
		sections[h.name] = strings.TrimSpace(strings.Join(lines[h.line+1:end], "\n"))
	}
	return sections
}

// Update describes one applied change.
type Update struct {
	Section    string
	OldVersion string
	NewVersion string
	Created    bool
	Diff       string
}

// UpdateSection appends content to section, or replaces its body when
// appendMode is false. A missing section is created as a "## " heading
// before the footer. The patch version is bumped and the file rewritten.
func UpdateSection(path, section, content string, appendMode bool, now time.Time) (*Update, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read company context: %w", err)
	}
	before := string(data)

	after, created := applySection(before, section, strings.TrimRight(content, "\n"), appendMode)
	after = bumpVersion(after)
	after = lastUpdatedPattern.ReplaceAllString(after, "**Last Updated**: "+now.Format("2006-01-02"))

	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write company context: %w", err)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: filepath.Base(path) + "@" + Version(before),
		ToFile:   filepath.Base(path) + "@" + Version(after),
		Context:  2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff company context: %w", err)
	}

	return &Update{
		Section:    section,
		OldVersion: Version(before),
		NewVersion: Version(after),
		Created:    created,
		Diff:       diff,
	}, nil
}

func applySection(content, section, body string, appendMode bool) (string, bool) {
	lines := strings.Split(content, "\n")
	hs := headings(lines)

	for i, h := range hs {
		if h.name != section {
			continue
		}
		end := ownEnd(lines, hs, i)
		last := end
		for last > h.line+1 && strings.TrimSpace(lines[last-1]) == "" {
			last--
		}

		var repl []string
		if appendMode {
			repl = append(repl, lines[h.line+1:last]...)
			if last == h.line+1 {
				repl = append(repl, "")
			}
		} else {
			repl = append(repl, "")
		}
		repl = append(repl, strings.Split(body, "\n")...)
		repl = append(repl, "")

		out := make([]string, 0, len(lines)+len(repl))
		out = append(out, lines[:h.line+1]...)
		out = append(out, repl...)
		out = append(out, lines[end:]...)
		return strings.Join(out, "\n"), false
	}

	at := footerStart(lines)
	for at > 0 && strings.TrimSpace(lines[at-1]) == "" {
		at--
	}
	block := []string{"", "## " + section, ""}
	block = append(block, strings.Split(body, "\n")...)
	if at == len(lines) || strings.TrimSpace(lines[at]) != "" {
		block = append(block, "")
	}

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:at]...)
	out = append(out, block...)
	if at < len(lines) {
		out = append(out, lines[at:]...)
	}
	return strings.Join(out, "\n"), true
}

// bumpVersion increments the patch component of the first **Version**.
func bumpVersion(content string) string {
	done := false
	return versionPattern.ReplaceAllStringFunc(content, func(m string) string {
		if done {
			return m
		}
		done = true
		parts := versionPattern.FindStringSubmatch(m)
		patch, _ := strconv.Atoi(parts[3])
		return fmt.Sprintf("**Version**: %s.%s.%d", parts[1], parts[2], patch+1)
	})
}
