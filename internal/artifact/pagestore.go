package artifact

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/qianzhou/goso/pkg/errors"
)

// Page is one deduplicated web page as serialized in the pages file.
type Page struct {
	DocID   int
	Link    string
	Title   string
	Content string
}

// PageStore reads one serialized page by (offset, length). The pages file
// is opened per call and closed before return, so reads can run from any
// worker without sharing a file handle.
type PageStore struct {
	path    string
	offsets map[int]PageOffset
}

// NewPageStore creates a store over the pages file at path.
func NewPageStore(path string, offsets map[int]PageOffset) *PageStore {
	return &PageStore{path: path, offsets: offsets}
}

// PageAt reads and parses the page with the given docid.
func (s *PageStore) PageAt(docid int) (*Page, error) {
	off, ok := s.offsets[docid]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, apperrors.CodeNotFound, "docid %d not in offset table", docid)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening pages file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, off.Length)
	if _, err := f.ReadAt(buf, off.Offset); err != nil {
		return nil, fmt.Errorf("reading page %d at offset %d: %w", docid, off.Offset, err)
	}
	page, err := ParsePage(string(buf))
	if err != nil {
		return nil, err
	}
	if page.DocID != docid {
		return nil, apperrors.Newf(apperrors.ErrNotFound, apperrors.CodeNotFound,
			"page at offset %d carries docid %d, want %d", off.Offset, page.DocID, docid)
	}
	return page, nil
}

// ParsePage decodes one <doc> record.
func ParsePage(record string) (*Page, error) {
	docidStr, ok := extractTag(record, "docid")
	if !ok {
		return nil, apperrors.New(apperrors.ErrParse, apperrors.CodeInternal, "page record missing <docid>")
	}
	docid, err := strconv.Atoi(strings.TrimSpace(docidStr))
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrParse, apperrors.CodeInternal, "bad docid %q", docidStr)
	}
	link, _ := extractTag(record, "link")
	title, _ := extractTag(record, "title")
	content, _ := extractTag(record, "content")
	return &Page{
		DocID:   docid,
		Link:    strings.TrimSpace(link),
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
	}, nil
}

// extractTag returns the text between <name> and </name>. Page content was
// tag-stripped at ingest time, so a plain scan is sufficient.
func extractTag(record, name string) (string, bool) {
	open := "<" + name + ">"
	closing := "</" + name + ">"
	start := strings.Index(record, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(record[start:], closing)
	if end < 0 {
		return "", false
	}
	return record[start : start+end], true
}
