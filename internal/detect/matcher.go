package detect

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sha1n/invitewatch/internal/domain"
)

// sentenceBreaks end the region a keyword must share with a match.
const sentenceBreaks = "\n\r。！？!?；;"

// Options configures a Matcher.
type Options struct {
	Keywords        []string
	NumericPrefixes []string
	AlnumPrefixes   []string
	// KeywordWindow is the rune distance searched on each side of a match.
	KeywordWindow int
}

// DefaultOptions returns the built-in vocabulary and prefixes.
func DefaultOptions() Options {
	return Options{
		Keywords:        DefaultKeywords,
		NumericPrefixes: DefaultNumericPrefixes,
		AlnumPrefixes:   DefaultAlnumPrefixes,
		KeywordWindow:   DefaultKeywordWindow,
	}
}

// rule is one extraction pattern. Rules are searched independently of each
// other; overlaps are resolved afterwards by span.
type rule struct {
	kind domain.PatternKind
	re   *regexp.Regexp
	// bounded rules only accept matches not adjacent to other alphanumerics.
	bounded bool
	// keywordExempt rules accept matches with no keyword nearby.
	keywordExempt bool
	accept        func(string) bool
}

// Matcher applies the ordered rule list to text.
type Matcher struct {
	rules    []rule
	keywords []string
	window   int
	now      func() time.Time
}

// NewMatcher builds a matcher. Rules whose prefix list is empty are omitted.
func NewMatcher(opts Options) *Matcher {
	window := opts.KeywordWindow
	if window <= 0 {
		window = DefaultKeywordWindow
	}

	rules := []rule{{
		kind:          domain.KindSixUpper,
		re:            regexp.MustCompile(`[A-Z]{6}`),
		bounded:       true,
		keywordExempt: true,
	}}
	if alt := prefixAlternation(opts.NumericPrefixes); alt != "" {
		rules = append(rules, rule{
			kind: domain.KindPrefixedNumeric,
			re:   regexp.MustCompile(`(?:` + alt + `)[0-9]{2,6}`),
		})
	}
	if alt := prefixAlternation(opts.AlnumPrefixes); alt != "" {
		rules = append(rules, rule{
			kind: domain.KindPrefixedAlnum,
			re:   regexp.MustCompile(`(?:` + alt + `)[A-Z0-9]{4,8}`),
		})
	}
	rules = append(rules,
		rule{
			kind:   domain.KindGenericAlnum,
			re:     regexp.MustCompile(`[A-Z0-9]{4,12}`),
			accept: hasLetterAndDigit,
		},
		rule{
			kind: domain.KindAlphaNumericMix,
			re:   regexp.MustCompile(`[A-Z]{2,4}[0-9]{3,6}`),
		},
	)

	keywords := make([]string, 0, len(opts.Keywords))
	for _, kw := range opts.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return &Matcher{
		rules:    rules,
		keywords: keywords,
		window:   window,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for DiscoveredAt.
func (m *Matcher) SetClock(now func() time.Time) {
	m.now = now
}

type span struct{ start, end int }

// Extract returns every candidate in text, ranked by descending priority and
// then by first appearance. It never fails; no match yields an empty slice.
func (m *Matcher) Extract(text string, source domain.Source, sourceID string) []domain.CodeCandidate {
	if text == "" {
		return []domain.CodeCandidate{}
	}

	now := m.now()
	best := make(map[span]domain.CodeCandidate)

	for _, r := range m.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			match := text[start:end]

			if r.accept != nil && !r.accept(match) {
				continue
			}
			if r.bounded && !isBounded(text, start, end) {
				continue
			}
			if !r.keywordExempt && !m.nearKeyword(text, start, end) {
				continue
			}

			sp := span{start, end}
			if prev, ok := best[sp]; ok && prev.Priority >= r.kind.Priority() {
				continue
			}
			best[sp] = domain.CodeCandidate{
				Text:         match,
				Kind:         r.kind,
				Priority:     r.kind.Priority(),
				Source:       source,
				SourceID:     sourceID,
				Context:      snippet(text, start, end, m.window),
				DiscoveredAt: now,
				Start:        start,
				End:          end,
				Token:        enclosingToken(text, start, end),
			}
		}
	}

	out := make([]domain.CodeCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.CodeCandidate) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}

// nearKeyword reports whether a keyword occurs in the same sentence as the
// match and within the rune window. The match itself is excluded.
func (m *Matcher) nearKeyword(text string, start, end int) bool {
	if len(m.keywords) == 0 {
		return false
	}

	lo := max(sentenceStart(text, start), runesBack(text, start, m.window))
	hi := min(sentenceEnd(text, end), runesForward(text, end, m.window))

	before := strings.ToLower(text[lo:start])
	after := strings.ToLower(text[end:hi])
	for _, kw := range m.keywords {
		if containsKeyword(before, kw) || containsKeyword(after, kw) {
			return true
		}
	}
	return false
}

// containsKeyword matches ASCII keywords as whole words, so "test" is not
// found in "latest". Other keywords match anywhere.
func containsKeyword(s, kw string) bool {
	if !isASCIIWord(kw) {
		return strings.Contains(s, kw)
	}
	for off := 0; ; {
		i := strings.Index(s[off:], kw)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(kw)
		if isBounded(s, start, end) {
			return true
		}
		off = start + 1
	}
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) {
			return false
		}
	}
	return s != ""
}

func prefixAlternation(prefixes []string) string {
	quoted := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	// Longest first so that overlapping prefixes prefer the most specific one.
	slices.SortStableFunc(quoted, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	return strings.Join(quoted, "|")
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
			letter = true
		}
	}
	return letter && digit
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

func isBounded(text string, start, end int) bool {
	if start > 0 && isAlnum(text[start-1]) {
		return false
	}
	if end < len(text) && isAlnum(text[end]) {
		return false
	}
	return true
}

// enclosingToken widens [start,end) to the maximal ASCII alphanumeric run.
// Multi-byte runes never contain ASCII bytes, so byte scanning is safe.
func enclosingToken(text string, start, end int) string {
	for start > 0 && isAlnum(text[start-1]) {
		start--
	}
	for end < len(text) && isAlnum(text[end]) {
		end++
	}
	return text[start:end]
}

func sentenceStart(text string, pos int) int {
	for i := pos; i > 0; {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if strings.ContainsRune(sentenceBreaks, r) {
			return i
		}
		i -= size
	}
	return 0
}

func sentenceEnd(text string, pos int) int {
	for i := pos; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if strings.ContainsRune(sentenceBreaks, r) {
			return i
		}
		i += size
	}
	return len(text)
}

func runesBack(text string, pos, n int) int {
	for ; n > 0 && pos > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
	}
	return pos
}

func runesForward(text string, pos, n int) int {
	for ; n > 0 && pos < len(text); n-- {
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
	}
	return pos
}

func snippet(text string, start, end, window int) string {
	lo := runesBack(text, start, window)
	hi := runesForward(text, end, window)
	return strings.TrimSpace(text[lo:hi])
}
