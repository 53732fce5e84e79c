package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSummaryHighlight verifies token wrapping with 【】 and
// case-preserving replacement.
func TestSummaryHighlight(t *testing.T) {
	got := buildSummary("The Beijing report on beijing traffic", []string{"beijing"}, 200)
	want := "The 【Beijing】 report on 【beijing】 traffic"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestSummaryWindowAffixes verifies the ... prefix/suffix when the
// window does not span the whole content.
func TestSummaryWindowAffixes(t *testing.T) {
	content := strings.Repeat("a ", 200) + "北京" + strings.Repeat(" b", 200)
	got := buildSummary(content, []string{"北京"}, 40)

	if !strings.HasPrefix(got, "...") {
		t.Errorf("expected leading ellipsis, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected trailing ellipsis, got %q", got)
	}
	if !strings.Contains(got, "【北京】") {
		t.Errorf("expected highlighted token inside the window, got %q", got)
	}
}

// TestSummaryNoOccurrence verifies the window starts at content begin
// when no token occurs.
func TestSummaryNoOccurrence(t *testing.T) {
	got := buildSummary("短内容", []string{"北京"}, 200)
	if got != "短内容" {
		t.Errorf("got %q, want the untouched content", got)
	}
}

// TestSummaryRuneBoundaries verifies the byte window is snapped so no
// multibyte character is split.
func TestSummaryRuneBoundaries(t *testing.T) {
	content := strings.Repeat("汉", 300)
	got := buildSummary(content, []string{"汉"}, 101)
	trimmed := strings.TrimSuffix(strings.TrimPrefix(got, "..."), "...")
	trimmed = strings.ReplaceAll(trimmed, "【", "")
	trimmed = strings.ReplaceAll(trimmed, "】", "")
	if !utf8.ValidString(trimmed) {
		t.Errorf("summary window split a multibyte character: %q", got)
	}
	for _, r := range trimmed {
		if r != '汉' {
			t.Errorf("unexpected rune %q in summary", r)
		}
	}
}

// TestSanitizeReplacesDisallowed verifies codepoints outside the
// allow-set become spaces.
func TestSanitizeReplacesDisallowed(t *testing.T) {
	in := "ok\x01中文\U0001F600end"
	got := sanitize(in)
	if strings.ContainsRune(got, '\x01') || strings.ContainsRune(got, '\U0001F600') {
		t.Errorf("disallowed codepoints survived: %q", got)
	}
	if want := "ok 中文 end"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
