package webpages

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qianzhou/goso/internal/artifact"
)

// WriteArtifacts serializes the kept pages into webpages.dat and the
// matching offset table into offsets.dat under outDir.
func WriteArtifacts(outDir string, pages []artifact.Page) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	pagesPath := filepath.Join(outDir, artifact.PagesFile)
	offsetsPath := filepath.Join(outDir, artifact.OffsetsFile)

	pagesFile, err := os.Create(pagesPath)
	if err != nil {
		return fmt.Errorf("creating pages file: %w", err)
	}
	defer pagesFile.Close()
	offsetsFile, err := os.Create(offsetsPath)
	if err != nil {
		return fmt.Errorf("creating offsets file: %w", err)
	}
	defer offsetsFile.Close()

	pw := bufio.NewWriter(pagesFile)
	ow := bufio.NewWriter(offsetsFile)
	var offset int64
	for _, page := range pages {
		record := FormatPage(page)
		if _, err := pw.WriteString(record); err != nil {
			return fmt.Errorf("writing page %d: %w", page.DocID, err)
		}
		if _, err := fmt.Fprintf(ow, "%d %d %d\n", page.DocID, offset, len(record)); err != nil {
			return fmt.Errorf("writing offset for page %d: %w", page.DocID, err)
		}
		offset += int64(len(record))
	}
	if err := pw.Flush(); err != nil {
		return fmt.Errorf("flushing pages file: %w", err)
	}
	if err := ow.Flush(); err != nil {
		return fmt.Errorf("flushing offsets file: %w", err)
	}
	return nil
}

// FormatPage renders one <doc> record exactly as stored in webpages.dat.
func FormatPage(page artifact.Page) string {
	return fmt.Sprintf("<doc>\n  <docid>%d</docid>\n  <link>%s</link>\n  <title>%s</title>\n  <content>%s</content>\n</doc>\n",
		page.DocID, page.Link, page.Title, page.Content)
}
