package recommend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/pkg/config"
)

// writeFixtureArtifacts lays down a minimal artifact directory: a
// Chinese lexicon of four words sharing the character 中, an English
// lexicon of three words, and a one-page stub for the page artifacts.
func writeFixtureArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		// sorted by codepoint: 中华人民共和国 < 中国 < 中央 < 中心
		artifact.DictCNFile: "中华人民共和国 20\n中国 100\n中央 50\n中心 30\n",
		artifact.IndexCNFile: "中 1 2 3 4\n华 1\n和 1\n国 1 2\n央 3\n心 4\n民 1\n人 1\n共 1\n",
		artifact.DictENFile:  "hello 5\nhelp 4\nworld 3\n",
		artifact.IndexENFile: "d 3\ne 1 2\nh 1 2\nl 1 2 3\no 1 3\np 2\nr 3\nw 3\n",
		artifact.OffsetsFile: "1 0 10\n",
		artifact.PagesFile:   "<doc>\n  <docid>1</docid>\n  <link>http://example.com</link>\n  <title>t</title>\n  <content>c</content>\n</doc>\n",
		artifact.InvertedFile: "中国 1 1.000000\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestRecommender(t *testing.T) *Recommender {
	t.Helper()
	readers, err := artifact.Load(writeFixtureArtifacts(t))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := New(readers, config.RecommendConfig{
		MaxEditDistance:       3,
		DefaultK:              10,
		CacheSize:             16,
		EditDistanceCacheSize: 64,
	})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

// TestRecommendRanking verifies the (distance asc, frequency desc, word
// asc) ordering and the max-edit-distance cutoff.
func TestRecommendRanking(t *testing.T) {
	rec := newTestRecommender(t)
	got := rec.Recommend("中国", 10)

	want := []Candidate{
		{Word: "中国", EditDistance: 0, Frequency: 100},
		{Word: "中央", EditDistance: 1, Frequency: 50},
		{Word: "中心", EditDistance: 1, Frequency: 30},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	// 中华人民共和国 shares 中 but its distance (5) exceeds the cutoff
	for _, c := range got {
		if c.Word == "中华人民共和国" {
			t.Error("expected far candidate to be rejected")
		}
	}
}

// TestRecommendMonotonicInK verifies the first k1 of recommend(q, k2)
// equal recommend(q, k1) for k1 <= k2.
func TestRecommendMonotonicInK(t *testing.T) {
	rec := newTestRecommender(t)
	full := rec.Recommend("中国", 3)
	one := rec.Recommend("中国", 1)

	if len(one) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(one))
	}
	if one[0] != full[0] {
		t.Errorf("k=1 prefix mismatch: got %+v, want %+v", one[0], full[0])
	}
}

// TestRecommendEnglish verifies the English path: letter-index candidate
// generation and frequency fallback to the English lexicon.
func TestRecommendEnglish(t *testing.T) {
	rec := newTestRecommender(t)
	got := rec.Recommend("helo", 10)

	want := []Candidate{
		{Word: "hello", EditDistance: 1, Frequency: 5},
		{Word: "help", EditDistance: 1, Frequency: 4},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

// TestRecommendBoundaries verifies the empty-query and k=0 behaviours.
func TestRecommendBoundaries(t *testing.T) {
	rec := newTestRecommender(t)
	if got := rec.Recommend("", 5); len(got) != 0 {
		t.Errorf("empty query: expected no candidates, got %v", got)
	}
	if got := rec.Recommend("中国", 0); len(got) != 0 {
		t.Errorf("k=0: expected no candidates, got %v", got)
	}
}

// TestDistanceProperties verifies symmetry, identity, and the triangle
// inequality of the memoized edit distance.
func TestDistanceProperties(t *testing.T) {
	rec := newTestRecommender(t)
	words := []string{"中国", "中央", "中心", "hello", "help", ""}
	for _, x := range words {
		if d := rec.Distance(x, x); d != 0 {
			t.Errorf("d(%q,%q) = %d, want 0", x, x, d)
		}
		for _, y := range words {
			dxy := rec.Distance(x, y)
			dyx := rec.Distance(y, x)
			if dxy != dyx {
				t.Errorf("symmetry violated: d(%q,%q)=%d, d(%q,%q)=%d", x, y, dxy, y, x, dyx)
			}
			for _, z := range words {
				if rec.Distance(x, z) > dxy+rec.Distance(y, z) {
					t.Errorf("triangle inequality violated for %q,%q,%q", x, y, z)
				}
			}
		}
	}
}

// TestDistanceIsRuneBased verifies the distance counts characters, not
// bytes: one CJK substitution is distance 1.
func TestDistanceIsRuneBased(t *testing.T) {
	rec := newTestRecommender(t)
	if d := rec.Distance("中国", "中央"); d != 1 {
		t.Errorf("d(中国,中央) = %d, want 1", d)
	}
}

// TestRecommendCached verifies repeat queries are answered from the
// result cache.
func TestRecommendCached(t *testing.T) {
	rec := newTestRecommender(t)
	rec.Recommend("中国", 3)
	rec.Recommend("中国", 3)
	results, _ := rec.CacheStats()
	if results.Hits == 0 {
		t.Error("expected a result-cache hit on the repeated query")
	}
}
