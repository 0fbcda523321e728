package detect

import (
	"strings"

	"github.com/sha1n/invitewatch/internal/domain"
)

// minScriptIndicators is how many distinct indicators mark a snippet as script.
const minScriptIndicators = 2

// scriptIndicators mark a context snippet as script source rather than prose.
var scriptIndicators = []string{
	"function", "var ", "let ", "const ", "{", "}", "()", ";", "return",
	"console.log", "document.", "window.", ".js", "script", "json",
}

// Denylist is a case-insensitive set of tokens that are never codes.
type Denylist map[string]struct{}

// NewDenylist builds a denylist from words; blank entries are ignored.
func NewDenylist(words ...string) Denylist {
	d := make(Denylist, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			d[strings.ToUpper(w)] = struct{}{}
		}
	}
	return d
}

// Contains reports whether text is denylisted.
func (d Denylist) Contains(text string) bool {
	_, ok := d[strings.ToUpper(text)]
	return ok
}

// Filter drops false positives and returns the survivors in input order.
// A candidate is dropped when it is denylisted, shorter than its kind allows,
// only part of a longer alphanumeric token, a quoted literal inside script
// source, or a repeat of an earlier survivor's text.
func Filter(candidates []domain.CodeCandidate, deny Denylist) []domain.CodeCandidate {
	out := make([]domain.CodeCandidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		switch {
		case deny.Contains(c.Text):
			continue
		case len(c.Text) < c.Kind.MinLength():
			continue
		case c.Partial():
			continue
		case quotedInScript(c):
			continue
		}
		if _, dup := seen[c.Text]; dup {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// quotedInScript catches assignments such as var code = "ABCDEF" that leak
// into page text from embedded scripts. One indicator alone is common in
// prose, so at least two are required.
func quotedInScript(c domain.CodeCandidate) bool {
	if !strings.Contains(c.Context, `"`+c.Text+`"`) && !strings.Contains(c.Context, `'`+c.Text+`'`) {
		return false
	}
	lower := strings.ToLower(c.Context)
	found := 0
	for _, ind := range scriptIndicators {
		if strings.Contains(lower, ind) {
			found++
		}
	}
	return found >= minScriptIndicators
}
