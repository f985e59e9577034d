// ABOUTME: Detection of unresolved template slots in text that will be sent verbatim
// ABOUTME: Matches bracket, brace, angle, double-brace and ${} tokens plus bare TODO/TBD/XXX markers
package validate

import (
	"regexp"
	"strings"
)

type placeholderPattern struct {
	re *regexp.Regexp
	// allowed, when set, exempts a match; text[end:] follows the match.
	allowed func(match, rest string) bool
}

// htmlTags may appear inside angle brackets in email bodies without
// counting as a slot.
var htmlTags = map[string]struct{}{
	"a": {}, "b": {}, "i": {}, "u": {}, "p": {}, "br": {}, "hr": {},
	"em": {}, "strong": {}, "ul": {}, "ol": {}, "li": {}, "div": {},
	"span": {}, "small": {}, "blockquote": {}, "h1": {}, "h2": {}, "h3": {},
}

func isHTMLTag(match, _ string) bool {
	_, ok := htmlTags[strings.ToLower(strings.Trim(match, "<>"))]
	return ok
}

// isMarkdownLink exempts "[label](url)".
func isMarkdownLink(_, rest string) bool {
	return strings.HasPrefix(rest, "(")
}

// placeholderPatterns are checked in order; the first match is reported.
// Bracket and brace slots may hold up to three words, as in [First Name].
var placeholderPatterns = []placeholderPattern{
	{re: regexp.MustCompile(`(?i)\[([A-Z_]+( [A-Z_]+){0,2}|\.\.\.)\]`), allowed: isMarkdownLink},
	{re: regexp.MustCompile(`(?i)\{([A-Z_]+( [A-Z_]+){0,2}|\.\.\.)\}`)},
	{re: regexp.MustCompile(`(?i)<([A-Z_]+|\.\.\.)>`), allowed: isHTMLTag},
	{re: regexp.MustCompile(`\{\{[^}]+\}\}`)},
	{re: regexp.MustCompile(`\$\{[^}]+\}`)},
	{re: regexp.MustCompile(`(?i)\bTODO\b`)},
	{re: regexp.MustCompile(`(?i)\bTBD\b`)},
	{re: regexp.MustCompile(`(?i)\bXXX\b`)},
	{re: regexp.MustCompile(`(?i)\[INSERT[^\]]*\]`)},
	{re: regexp.MustCompile(`(?i)\[FILL[^\]]*\]`)},
}

// FindPlaceholder returns the first placeholder token in text, or "".
func FindPlaceholder(text string) string {
	for _, p := range placeholderPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if p.allowed != nil && p.allowed(match, text[loc[1]:]) {
				continue
			}
			return match
		}
	}
	return ""
}

// HasPlaceholder reports whether text contains any placeholder token.
func HasPlaceholder(text string) bool {
	return FindPlaceholder(text) != ""
}
