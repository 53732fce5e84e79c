package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	apperrors "github.com/qianzhou/goso/pkg/errors"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	page1 := "<doc>\n  <docid>1</docid>\n  <link>http://example.com/1</link>\n  <title>标题</title>\n  <content>正文 内容</content>\n</doc>\n"
	files := map[string]string{
		DictCNFile:   "中国 100\n北京 40\n",
		IndexCNFile:  "中 1\n北 2\n京 2\n国 1\n",
		DictENFile:   "china 7\n",
		IndexENFile:  "a 1\nc 1\nh 1\ni 1\nn 1\n",
		OffsetsFile:  "1 0 " + strconv.Itoa(len(page1)) + "\n",
		PagesFile:    page1,
		InvertedFile: "中国 1 1.000000\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// TestReaderContracts exercises the lookup surface on a loaded fixture.
func TestReaderContracts(t *testing.T) {
	readers, err := Load(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	if got := readers.Frequency(Chinese, "中国"); got != 100 {
		t.Errorf("Frequency(中国) = %d, want 100", got)
	}
	if got := readers.Frequency(Chinese, "缺失"); got != 0 {
		t.Errorf("Frequency of a missing word = %d, want 0", got)
	}
	if got := readers.Frequency(English, "china"); got != 7 {
		t.Errorf("Frequency(china) = %d, want 7", got)
	}

	if got := readers.WordAt(Chinese, 1); got != "中国" {
		t.Errorf("WordAt(1) = %q, want 中国", got)
	}
	if got := readers.WordAt(Chinese, 0); got != "" {
		t.Errorf("WordAt(0) = %q, want empty", got)
	}
	if got := readers.WordAt(Chinese, 99); got != "" {
		t.Errorf("WordAt(99) = %q, want empty", got)
	}

	if lines := readers.LineNumbers(Chinese, "北"); len(lines) != 1 || lines[0] != 2 {
		t.Errorf("LineNumbers(北) = %v, want [2]", lines)
	}
	if lines := readers.LineNumbers(Chinese, "无"); len(lines) != 0 {
		t.Errorf("LineNumbers of an unindexed char = %v, want empty", lines)
	}

	if !readers.HasTerm("中国") {
		t.Error("HasTerm(中国) = false, want true")
	}
	if readers.HasTerm("北京") {
		t.Error("HasTerm(北京) = true, want false")
	}
	postings := readers.Postings("中国")
	if len(postings) != 1 || postings[0].DocID != 1 || postings[0].Weight != 1 {
		t.Errorf("Postings(中国) = %+v", postings)
	}

	if readers.DocCount() != 1 {
		t.Errorf("DocCount = %d, want 1", readers.DocCount())
	}
}

// TestPageAt verifies the (offset, length) random-access read and the
// NotFound error for a docid missing from the offset table.
func TestPageAt(t *testing.T) {
	readers, err := Load(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	page, err := readers.Pages().PageAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if page.DocID != 1 || page.Title != "标题" || page.Link != "http://example.com/1" || page.Content != "正文 内容" {
		t.Errorf("unexpected page: %+v", page)
	}

	_, err = readers.Pages().PageAt(42)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected NotFound for unknown docid, got %v", err)
	}
}

// TestLoadMissingFileFails verifies a missing artifact aborts the load.
func TestLoadMissingFileFails(t *testing.T) {
	dir := writeFixture(t)
	if err := os.Remove(filepath.Join(dir, InvertedFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected load failure with a missing artifact")
	}
}
