package detect

import (
	"testing"
	"time"

	"github.com/sha1n/invitewatch/internal/domain"
)

func newTestMatcher() *Matcher {
	m := NewMatcher(DefaultOptions())
	m.SetClock(func() time.Time { return time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC) })
	return m
}

func kinds(cs []domain.CodeCandidate) []domain.PatternKind {
	out := make([]domain.PatternKind, len(cs))
	for i, c := range cs {
		out[i] = c.Kind
	}
	return out
}

func TestExtract_SecondRoundPassphrase(t *testing.T) {
	m := newTestMatcher()
	text := "感谢大家的热情！我们尽力为大家争取到了今日第二轮暗号：XMGOOD"

	got := m.Extract(text, domain.SourceComment, "c1")
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d: %+v", len(got), got)
	}

	c := got[0]
	if c.Text != "XMGOOD" {
		t.Errorf("Text = %q, want XMGOOD", c.Text)
	}
	if c.Kind != domain.KindSixUpper {
		t.Errorf("Kind = %s, want SIX_UPPER (PREFIXED_ALNUM must lose the tie)", c.Kind)
	}
	if c.Priority != 100 {
		t.Errorf("Priority = %d, want 100", c.Priority)
	}
	if c.Source != domain.SourceComment || c.SourceID != "c1" {
		t.Errorf("Source = %s/%s", c.Source, c.SourceID)
	}
	if c.Context != text {
		t.Errorf("Context = %q, want whole text", c.Context)
	}
	if c.Partial() {
		t.Error("Candidate should cover its whole token")
	}
	if !c.DiscoveredAt.Equal(time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("DiscoveredAt = %v", c.DiscoveredAt)
	}
}

func TestExtract_NoCodeNoKeyword(t *testing.T) {
	m := newTestMatcher()
	got := m.Extract("本来大家挺有热情的，这么搞，新鲜劲一过完犊子", domain.SourceComment, "c2")
	if len(got) != 0 {
		t.Errorf("Expected no candidates, got %+v", got)
	}
}

func TestExtract_EmptyText(t *testing.T) {
	m := newTestMatcher()
	got := m.Extract("", domain.SourceNote, "n1")
	if got == nil {
		t.Fatal("Expected empty non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("Expected no candidates, got %d", len(got))
	}
}

func TestExtract_SixUpperIsKeywordExempt(t *testing.T) {
	m := newTestMatcher()
	texts := []string{
		"ABCDEF",
		"小美太好用了，强烈推荐 FUTURE",
		"hello GROWUP world",
		"（DAYONE）",
		"今天天气不错\nQWERTY\n明天见",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			got := m.Extract(text, domain.SourceNote, "n")
			if len(got) != 1 {
				t.Fatalf("Expected exactly 1 candidate, got %d: %+v", len(got), got)
			}
			if got[0].Kind != domain.KindSixUpper || got[0].Priority != 100 {
				t.Errorf("Kind/Priority = %s/%d, want SIX_UPPER/100", got[0].Kind, got[0].Priority)
			}
		})
	}
}

func TestExtract_SixUpperMustBeWordBounded(t *testing.T) {
	m := newTestMatcher()
	tests := []string{
		"ABCDEFGH",
		"xABCDEF",
		"ABCDEF1",
		"1ABCDEF",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			for _, c := range m.Extract(text, domain.SourceNote, "n") {
				if c.Kind == domain.KindSixUpper {
					t.Errorf("Unexpected SIX_UPPER candidate %q", c.Text)
				}
			}
		})
	}
}

func TestExtract_RuleClassification(t *testing.T) {
	m := newTestMatcher()
	tests := []struct {
		name     string
		text     string
		wantText string
		wantKind domain.PatternKind
	}{
		{"prefixed numeric", "我有邀请码 XIAOMEI888，分享给大家", "XIAOMEI888", domain.KindPrefixedNumeric},
		{"prefixed alnum", "暗号 XM12345", "XM12345", domain.KindPrefixedAlnum},
		{"alpha numeric mix", "内测码 ABC1234", "ABC1234", domain.KindAlphaNumericMix},
		{"generic alnum", "邀请码：A1B2C3D4", "A1B2C3D4", domain.KindGenericAlnum},
		{"english keyword", "invite: QX7788", "QX7788", domain.KindAlphaNumericMix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(m.Extract(tt.text, domain.SourceNote, "n"), nil)
			if len(got) != 1 {
				t.Fatalf("Expected 1 candidate, got %d: %+v", len(got), got)
			}
			if got[0].Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got[0].Text, tt.wantText)
			}
			if got[0].Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", got[0].Kind, tt.wantKind)
			}
			if got[0].Priority != tt.wantKind.Priority() {
				t.Errorf("Priority = %d, want %d", got[0].Priority, tt.wantKind.Priority())
			}
		})
	}
}

func TestExtract_SameSpanKeepsHighestPriority(t *testing.T) {
	m := newTestMatcher()
	got := m.Extract("我有邀请码 XIAOMEI888，分享给大家", domain.SourceNote, "n")

	// GENERIC_ALNUM also covers the full span and must be folded into
	// PREFIXED_NUMERIC; the ALPHA_NUMERIC_MIX hit is a different, partial span.
	if len(got) != 2 {
		t.Fatalf("Expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Kind != domain.KindPrefixedNumeric || got[0].Text != "XIAOMEI888" {
		t.Errorf("First = %s %q, want PREFIXED_NUMERIC XIAOMEI888", got[0].Kind, got[0].Text)
	}
	if got[1].Kind != domain.KindAlphaNumericMix || !got[1].Partial() {
		t.Errorf("Second = %s partial=%v, want partial ALPHA_NUMERIC_MIX", got[1].Kind, got[1].Partial())
	}
}

func TestExtract_KeywordRequired(t *testing.T) {
	m := newTestMatcher()
	tests := []struct {
		name string
		text string
	}{
		{"no keyword", "see ABC1234 here"},
		{"keyword in another sentence", "邀请码在下面。ABC1234"},
		{"keyword on another line", "口令\nABC1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Extract(tt.text, domain.SourceNote, "n"); len(got) != 0 {
				t.Errorf("Expected no candidates, got %+v", got)
			}
		})
	}
}

func TestExtract_EnglishKeywordsAreWholeWords(t *testing.T) {
	m := newTestMatcher()
	tests := []struct {
		text string
		want int
	}{
		{"The latest build is ZX9981", 0},
		{"barcode ZX9981", 0},
		{"beta test ZX9981", 1},
		{"Promo-code: ZX9981", 1},
		{"内测code：ZX9981", 1},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := Filter(m.Extract(tt.text, domain.SourceNote, "n"), nil); len(got) != tt.want {
				t.Errorf("Expected %d candidates, got %+v", tt.want, got)
			}
		})
	}
}

func TestContainsKeyword(t *testing.T) {
	tests := []struct {
		s, kw string
		want  bool
	}{
		{"the latest", "test", false},
		{"latest test", "test", true},
		{"test2", "test", false},
		{"(test)", "test", true},
		{"活动邀请码", "邀请码", true},
		{"", "code", false},
	}
	for _, tt := range tests {
		if got := containsKeyword(tt.s, tt.kw); got != tt.want {
			t.Errorf("containsKeyword(%q, %q) = %v, want %v", tt.s, tt.kw, got, tt.want)
		}
	}
}

func TestExtract_KeywordOutsideWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.KeywordWindow = 5
	m := NewMatcher(opts)

	text := "邀请码就在这段很长很长的话的最后面 ABC1234"
	if got := m.Extract(text, domain.SourceNote, "n"); len(got) != 0 {
		t.Errorf("Expected no candidates with a 5-rune window, got %+v", got)
	}

	if got := m.Extract("邀请码 ABC1234", domain.SourceNote, "n"); len(got) != 1 {
		t.Errorf("Expected 1 candidate within the window, got %d", len(got))
	}
}

func TestExtract_MatchDoesNotCountAsItsOwnKeyword(t *testing.T) {
	m := newTestMatcher()
	// "CODE12" contains "code" case-insensitively, but only the match itself does.
	if got := m.Extract("look CODE12 now", domain.SourceNote, "n"); len(got) != 0 {
		t.Errorf("Expected no candidates, got %+v", got)
	}
}

func TestExtract_OrderByPriorityThenPosition(t *testing.T) {
	m := newTestMatcher()
	got := Filter(m.Extract("今日暗号：ABC123 和 FUTURE 还有 GROWUP", domain.SourceNote, "n"), nil)

	want := []string{"FUTURE", "GROWUP", "ABC123"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("got[%d] = %q, want %q (kinds %v)", i, got[i].Text, w, kinds(got))
		}
	}
}

func TestExtract_WithoutAlnumPrefixes(t *testing.T) {
	opts := DefaultOptions()
	opts.AlnumPrefixes = nil
	m := NewMatcher(opts)

	got := Filter(m.Extract("暗号 XM12345", domain.SourceNote, "n"), nil)
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Kind != domain.KindAlphaNumericMix {
		t.Errorf("Kind = %s, want ALPHA_NUMERIC_MIX when no alnum prefix is configured", got[0].Kind)
	}
}

func TestExtract_ContextSnippetIsBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.KeywordWindow = 3
	m := NewMatcher(opts)

	got := m.Extract("一二三四五六 FUTURE 七八九十", domain.SourceNote, "n")
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Context != "五六 FUTURE 七八" {
		t.Errorf("Context = %q", got[0].Context)
	}
}

func TestPrefixAlternation(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{" ", ""}, ""},
		{[]string{"XM"}, "XM"},
		{[]string{"XM", "XMAS"}, "XMAS|XM"},
		{[]string{"A.B"}, `A\.B`},
	}

	for _, tt := range tests {
		if got := prefixAlternation(tt.in); got != tt.want {
			t.Errorf("prefixAlternation(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnclosingToken(t *testing.T) {
	text := "暗号：XMGOOD2025ABC！"
	start := len("暗号：")
	if got := enclosingToken(text, start, start+6); got != "XMGOOD2025ABC" {
		t.Errorf("enclosingToken = %q", got)
	}
}
