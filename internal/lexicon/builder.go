// Package lexicon builds the per-language dictionary and character-index
// artifacts from a corpus directory of .txt files.
package lexicon

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/internal/tokenizer"
)

// Builder accumulates word frequencies over a corpus and writes the
// dictionary and character/letter index files.
type Builder struct {
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given tokenizer facade.
func NewBuilder(tok *tokenizer.Tokenizer) *Builder {
	return &Builder{
		tok:    tok,
		logger: slog.Default().With("component", "lexicon-builder"),
	}
}

// BuildChinese walks srcDir and writes dict_cn.dat and index_cn.dat under
// outDir.
func (b *Builder) BuildChinese(srcDir, outDir string) error {
	freq, err := b.accumulate(srcDir, b.tok.CutChinese)
	if err != nil {
		return err
	}
	entries := sortEntries(freq)
	if err := writeDict(filepath.Join(outDir, artifact.DictCNFile), entries); err != nil {
		return err
	}
	if err := writeIndex(filepath.Join(outDir, artifact.IndexCNFile), entries, cjkChars); err != nil {
		return err
	}
	b.logger.Info("chinese lexicon built", "entries", len(entries), "src", srcDir)
	return nil
}

// BuildEnglish walks srcDir and writes dict_en.dat and index_en.dat under
// outDir.
func (b *Builder) BuildEnglish(srcDir, outDir string) error {
	freq, err := b.accumulate(srcDir, b.tok.TokenizeEnglish)
	if err != nil {
		return err
	}
	entries := sortEntries(freq)
	if err := writeDict(filepath.Join(outDir, artifact.DictENFile), entries); err != nil {
		return err
	}
	if err := writeIndex(filepath.Join(outDir, artifact.IndexENFile), entries, asciiLetters); err != nil {
		return err
	}
	b.logger.Info("english lexicon built", "entries", len(entries), "src", srcDir)
	return nil
}

// accumulate tokenizes every .txt file under dir and merges the per-file
// frequency maps. Files are listed in lexicographic basename order and the
// merge is commutative, so the result is independent of scheduling.
func (b *Builder) accumulate(dir string, tokenize func(string) []string) (map[string]int, error) {
	files, err := listTxtFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .txt files under %s", dir)
	}

	var mu sync.Mutex
	total := make(map[string]int)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading corpus file %s: %w", path, err)
			}
			local := make(map[string]int)
			for _, tok := range tokenize(string(data)) {
				local[tok]++
			}
			mu.Lock()
			for word, n := range local {
				total[word] += n
			}
			mu.Unlock()
			b.logger.Debug("corpus file processed", "file", filepath.Base(path), "tokens", len(local))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

func listTxtFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus directory %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

// sortEntries orders words by Unicode codepoint (UTF-8 byte order agrees
// with codepoint order).
func sortEntries(freq map[string]int) []artifact.WordEntry {
	entries := make([]artifact.WordEntry, 0, len(freq))
	for word, n := range freq {
		entries = append(entries, artifact.WordEntry{Word: word, Frequency: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Word < entries[j].Word
	})
	return entries
}

func writeDict(path string, entries []artifact.WordEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %d\n", e.Word, e.Frequency)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing dictionary %s: %w", path, err)
	}
	return nil
}

// writeIndex assigns each entry its 1-based dictionary line and appends
// that line to the posting of every distinct character charsOf yields for
// the word. Output lines are sorted by character codepoint.
func writeIndex(path string, entries []artifact.WordEntry, charsOf func(string) []string) error {
	index := make(map[string][]int)
	for i, e := range entries {
		line := i + 1
		for _, ch := range charsOf(e.Word) {
			index[ch] = append(index[ch], line)
		}
	}
	chars := make([]string, 0, len(index))
	for ch := range index {
		chars = append(chars, ch)
	}
	sort.Strings(chars)

	var b strings.Builder
	for _, ch := range chars {
		b.WriteString(ch)
		for _, line := range index[ch] {
			fmt.Fprintf(&b, " %d", line)
		}
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing character index %s: %w", path, err)
	}
	return nil
}

// cjkChars returns the distinct CJK ideographs of word in first-seen order.
func cjkChars(word string) []string {
	seen := make(map[rune]struct{})
	var chars []string
	for _, r := range word {
		if !tokenizer.IsCJK(r) {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		chars = append(chars, string(r))
	}
	return chars
}

// asciiLetters returns the distinct lowercase letters of word in
// first-seen order.
func asciiLetters(word string) []string {
	seen := make(map[byte]struct{})
	var chars []string
	for i := 0; i < len(word); i++ {
		b := word[i]
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		if b < 'a' || b > 'z' {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		chars = append(chars, string(b))
	}
	return chars
}
