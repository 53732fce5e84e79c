// Package webpages ingests RSS-style XML corpora, eliminates near
// duplicates via SimHash, and serializes the kept pages plus their offset
// table.
package webpages

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/qianzhou/goso/internal/artifact"
)

type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title          string `xml:"title"`
	Link           string `xml:"link"`
	ContentEncoded string `xml:"encoded"`
	Content        string `xml:"content"`
	Description    string `xml:"description"`
}

// Ingestor parses XML corpus files into page records, assigning docids
// sequentially from 1 in ingest order.
type Ingestor struct {
	nextDocID int
	logger    *slog.Logger
}

// NewIngestor creates an Ingestor starting at docid 1.
func NewIngestor() *Ingestor {
	return &Ingestor{
		nextDocID: 1,
		logger:    slog.Default().With("component", "page-ingest"),
	}
}

// IngestDir parses every .xml file under dir in lexicographic basename
// order and returns the extracted pages. Items with empty cleaned content
// are discarded and consume no docid.
func (in *Ingestor) IngestDir(dir string) ([]artifact.Page, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".xml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking xml directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .xml files under %s", dir)
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	var pages []artifact.Page
	for _, path := range files {
		filePages, err := in.ingestFile(path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, filePages...)
	}
	return pages, nil
}

func (in *Ingestor) ingestFile(path string) ([]artifact.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening xml file %s: %w", path, err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	decoder.CharsetReader = charset.NewReaderLabel
	var doc rssDoc
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing xml file %s: %w", path, err)
	}

	pages := make([]artifact.Page, 0, len(doc.Channel.Items))
	discarded := 0
	for _, item := range doc.Channel.Items {
		content := firstNonEmpty(item.ContentEncoded, item.Content, item.Description)
		content = CleanContent(content)
		if content == "" {
			discarded++
			continue
		}
		pages = append(pages, artifact.Page{
			DocID:   in.nextDocID,
			Link:    strings.TrimSpace(item.Link),
			Title:   CleanContent(item.Title),
			Content: content,
		})
		in.nextDocID++
	}
	in.logger.Info("xml file ingested",
		"file", filepath.Base(path),
		"items", len(doc.Channel.Items),
		"pages", len(pages),
		"discarded", discarded,
	)
	return pages, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CleanContent strips a single leading CDATA wrapper, removes every
// <...> tag, collapses whitespace runs to one space, and trims.
func CleanContent(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "<![CDATA[") {
		s = strings.TrimPrefix(s, "<![CDATA[")
		if idx := strings.LastIndex(s, "]]>"); idx >= 0 {
			s = s[:idx] + s[idx+len("]]>"):]
		}
	}
	s = stripTags(s)
	return strings.Join(strings.Fields(s), " ")
}

func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
				b.WriteByte(' ')
			} else {
				b.WriteRune(r)
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
