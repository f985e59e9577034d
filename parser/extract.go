// ABOUTME: Candidate extraction for the fenced and best-effort parser tiers
// ABOUTME: Scans fenced code blocks line by line and balanced JSON objects outside them
package parser

import (
	"bufio"
	"sort"
	"strings"
)

// fencedBlocks returns the bodies of closed ``` blocks. Blocks whose info
// string names json come first, then untagged blocks, each in document
// order. Blocks tagged with another language are ignored.
func fencedBlocks(response string) []string {
	var tagged, generic []string

	var (
		body    strings.Builder
		inBlock bool
		isJSON  bool
		isPlain bool
	)

	scanner := bufio.NewScanner(strings.NewReader(response))
	scanner.Buffer(make([]byte, 64*1024), len(response)+1)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inBlock {
			if !strings.HasPrefix(trimmed, "```") {
				continue
			}
			info := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "```")))
			inBlock = true
			isJSON = strings.HasPrefix(info, "json")
			isPlain = info == ""
			body.Reset()
			continue
		}

		if trimmed == "```" {
			switch {
			case isJSON:
				tagged = append(tagged, body.String())
			case isPlain:
				generic = append(generic, body.String())
			}
			inBlock = false
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	return append(tagged, generic...)
}

// jsonObjects finds balanced {...} spans, honouring string literals and
// escapes, plus the greedy span from the first '{' to the last '}'.
// Candidates are deduplicated and ordered longest first.
func jsonObjects(response string) []string {
	seen := make(map[string]bool)
	var candidates []string
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		candidates = append(candidates, c)
	}

	for i := 0; i < len(response); {
		start := strings.IndexByte(response[i:], '{')
		if start < 0 {
			break
		}
		start += i
		end := matchBrace(response, start)
		if end < 0 {
			i = start + 1
			continue
		}
		add(response[start : end+1])
		i = end + 1
	}

	if first, last := strings.IndexByte(response, '{'), strings.LastIndexByte(response, '}'); first >= 0 && last > first {
		add(response[first : last+1])
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return len(candidates[a]) > len(candidates[b])
	})
	return candidates
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
