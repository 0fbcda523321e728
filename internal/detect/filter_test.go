package detect

import (
	"testing"

	"github.com/sha1n/invitewatch/internal/domain"
)

func candidate(text string, kind domain.PatternKind) domain.CodeCandidate {
	return domain.CodeCandidate{
		Text:     text,
		Kind:     kind,
		Priority: kind.Priority(),
		Token:    text,
	}
}

func TestNewDenylist(t *testing.T) {
	d := NewDenylist("cookie", " LOGIN ", "", "  ")

	if len(d) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(d))
	}
	for _, w := range []string{"COOKIE", "cookie", "Login"} {
		if !d.Contains(w) {
			t.Errorf("Expected %q to be denylisted", w)
		}
	}
	if d.Contains("FUTURE") {
		t.Error("FUTURE should not be denylisted")
	}
}

func TestDenylist_NilIsEmpty(t *testing.T) {
	var d Denylist
	if d.Contains("COOKIE") {
		t.Error("nil denylist should contain nothing")
	}
}

func TestFilter_DenylistedSixUpperIsDropped(t *testing.T) {
	m := newTestMatcher()
	got := Filter(m.Extract("请先 COOKIE 然后 FUTURE", domain.SourceNote, "n"), NewDenylist("COOKIE"))

	if len(got) != 1 || got[0].Text != "FUTURE" {
		t.Fatalf("Expected only FUTURE, got %+v", got)
	}
}

func TestFilter_DefaultDenylist(t *testing.T) {
	deny := NewDenylist(DefaultDenylist...)
	for _, w := range []string{"COOKIE", "LOGIN", "SCRIPT", "HEADER"} {
		got := Filter([]domain.CodeCandidate{candidate(w, domain.KindSixUpper)}, deny)
		if len(got) != 0 {
			t.Errorf("Expected %q to be dropped by the default denylist", w)
		}
	}
}

func TestFilter_Rules(t *testing.T) {
	partial := candidate("ABCDEF", domain.KindSixUpper)
	partial.Token = "ABCDEFGH"

	tests := []struct {
		name string
		in   domain.CodeCandidate
		keep bool
	}{
		{"plain six upper", candidate("FUTURE", domain.KindSixUpper), true},
		{"below six upper minimum", candidate("ABCDE", domain.KindSixUpper), false},
		{"below generic minimum", candidate("A1B", domain.KindGenericAlnum), false},
		{"partial token", partial, false},
		{"prefixed numeric", candidate("XIAOMEI88", domain.KindPrefixedNumeric), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter([]domain.CodeCandidate{tt.in}, nil)
			if kept := len(got) == 1; kept != tt.keep {
				t.Errorf("kept = %v, want %v", kept, tt.keep)
			}
		})
	}
}

func TestFilter_PartialDroppedButFullTokenKept(t *testing.T) {
	m := newTestMatcher()
	// The 13-character token only yields partial matches; nothing survives.
	if got := Filter(m.Extract("暗号：XMGOOD2025ABC", domain.SourceNote, "n"), nil); len(got) != 0 {
		t.Errorf("Expected no candidates from an over-long token, got %+v", got)
	}

	// XIAOMEI888 matches PREFIXED_NUMERIC on its own, so only the partial
	// ALPHA_NUMERIC_MIX hit inside it is dropped.
	got := Filter(m.Extract("邀请码 XIAOMEI888", domain.SourceNote, "n"), nil)
	if len(got) != 1 || got[0].Text != "XIAOMEI888" {
		t.Errorf("Expected XIAOMEI888 only, got %+v", got)
	}
}

func TestFilter_DuplicateTextKeepsFirst(t *testing.T) {
	m := newTestMatcher()
	got := Filter(m.Extract("FUTURE！再说一遍 FUTURE", domain.SourceNote, "n"), nil)

	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Start != 0 {
		t.Errorf("Expected first occurrence to survive, got offset %d", got[0].Start)
	}
}

func TestFilter_QuotedInScript(t *testing.T) {
	m := newTestMatcher()

	got := Filter(m.Extract(`var code = "ABCDEF";`, domain.SourceNote, "n"), nil)
	if len(got) != 0 {
		t.Errorf("Expected quoted script literal to be dropped, got %+v", got)
	}

	got = Filter(m.Extract(`新邀请码："FUTURE"，快用`, domain.SourceNote, "n"), nil)
	if len(got) != 1 {
		t.Errorf("Quoted code in prose should survive, got %+v", got)
	}

	// a lone semicolon is punctuation, not script
	got = Filter(m.Extract(`今日暗号"QWERTY"; 快冲`, domain.SourceNote, "n"), nil)
	if len(got) != 1 || got[0].Text != "QWERTY" {
		t.Errorf("Quoted code with one script-like character should survive, got %+v", got)
	}

	got = Filter(m.Extract(`window.code = 'QWERTY';`, domain.SourceNote, "n"), nil)
	if len(got) != 0 {
		t.Errorf("Expected single-quoted script literal to be dropped, got %+v", got)
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	in := []domain.CodeCandidate{
		candidate("FUTURE", domain.KindSixUpper),
		candidate("XIAOMEI88", domain.KindPrefixedNumeric),
		candidate("ABC123", domain.KindAlphaNumericMix),
	}
	got := Filter(in, NewDenylist())
	if len(got) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(got))
	}
	for i := range in {
		if got[i].Text != in[i].Text {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Text, in[i].Text)
		}
	}
}

func TestFilter_Deterministic(t *testing.T) {
	m := newTestMatcher()
	text := "今日暗号：ABC123 和 FUTURE，内测码 XIAOMEI66"
	deny := NewDenylist(DefaultDenylist...)

	first := Filter(m.Extract(text, domain.SourceNote, "n"), deny)
	for range 5 {
		again := Filter(m.Extract(text, domain.SourceNote, "n"), deny)
		if len(again) != len(first) {
			t.Fatalf("len = %d, want %d", len(again), len(first))
		}
		for i := range first {
			if again[i].Text != first[i].Text || again[i].Kind != first[i].Kind {
				t.Errorf("run differs at %d: %q/%s vs %q/%s", i, again[i].Text, again[i].Kind, first[i].Text, first[i].Kind)
			}
		}
	}
}
