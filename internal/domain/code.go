package domain

import "time"

// PatternKind names the extraction rule that classified a candidate.
type PatternKind string

const (
	KindSixUpper        PatternKind = "SIX_UPPER"
	KindPrefixedNumeric PatternKind = "PREFIXED_NUMERIC"
	KindPrefixedAlnum   PatternKind = "PREFIXED_ALNUM"
	KindGenericAlnum    PatternKind = "GENERIC_ALNUM"
	KindAlphaNumericMix PatternKind = "ALPHA_NUMERIC_MIX"
)

// Priority returns the fixed ranking of a kind. SIX_UPPER outranks every other
// rule so that six-letter codes win any tie over the same span.
func (k PatternKind) Priority() int {
	switch k {
	case KindSixUpper:
		return 100
	case KindPrefixedNumeric:
		return 80
	case KindPrefixedAlnum:
		return 70
	case KindAlphaNumericMix:
		return 50
	case KindGenericAlnum:
		return 40
	default:
		return 0
	}
}

// MinLength returns the shortest text a kind can legitimately produce.
func (k PatternKind) MinLength() int {
	switch k {
	case KindSixUpper:
		return 6
	case KindPrefixedNumeric:
		return 3
	case KindPrefixedAlnum, KindAlphaNumericMix:
		return 5
	case KindGenericAlnum:
		return 4
	default:
		return 0
	}
}

// Source identifies which kind of fetched unit a code came from.
type Source string

const (
	SourceNote    Source = "NOTE"
	SourceComment Source = "COMMENT"
)

// CodeCandidate is a substring extracted by a pattern rule that has not yet
// been checked against history.
type CodeCandidate struct {
	// Text is the matched code, e.g. "XMGOOD".
	Text     string      `json:"text"`
	Kind     PatternKind `json:"kind"`
	Priority int         `json:"priority"`

	Source   Source `json:"source"`
	SourceID string `json:"source_id"`

	// Context is the trimmed text surrounding the match, used in notifications.
	Context      string    `json:"context"`
	DiscoveredAt time.Time `json:"discovered_at"`

	// Start and End are byte offsets of the match within the source text.
	Start int `json:"-"`
	End   int `json:"-"`

	// Token is the maximal ASCII alphanumeric run enclosing the match. A
	// candidate whose Text differs from Token is a partial match.
	Token string `json:"-"`
}

// Partial reports whether the match covers only part of its enclosing token.
func (c CodeCandidate) Partial() bool {
	return c.Token != "" && c.Token != c.Text
}

// HistoryRecord is the durable entry for a code that has been surfaced.
type HistoryRecord struct {
	Code        string      `json:"code"`
	FirstSeenAt time.Time   `json:"first_seen_at"`
	Source      Source      `json:"source"`
	SourceID    string      `json:"source_id,omitempty"`
	Kind        PatternKind `json:"kind,omitempty"`
	Context     string      `json:"context,omitempty"`
	Notified    bool        `json:"notified"`
	NotifiedAt  *time.Time  `json:"notified_at,omitempty"`
}

// Candidate rebuilds a candidate from a stored record, used when a
// previously committed code is re-sent.
func (r HistoryRecord) Candidate() CodeCandidate {
	return CodeCandidate{
		Text:         r.Code,
		Kind:         r.Kind,
		Priority:     r.Kind.Priority(),
		Source:       r.Source,
		SourceID:     r.SourceID,
		Context:      r.Context,
		DiscoveredAt: r.FirstSeenAt,
		Token:        r.Code,
	}
}

// Note is one post fetched from the monitored account.
type Note struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	// Token is the access token the comment endpoint requires for this note.
	Token string `json:"token,omitempty"`
}

// Body returns the searchable text of a note: title and text joined by a newline.
func (n Note) Body() string {
	switch {
	case n.Title == "":
		return n.Text
	case n.Text == "":
		return n.Title
	default:
		return n.Title + "\n" + n.Text
	}
}

// Comment is one comment under a note.
type Comment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Bleve field name constants for the history search index.
const (
	RecordFieldCode     = "code"
	RecordFieldSource   = "source"
	RecordFieldKind     = "kind"
	RecordFieldContext  = "context"
	RecordFieldNotified = "notified"
)
