// Package tokenizer provides the bilingual segmentation facade. Chinese
// text goes through a dictionary-based segmenter (gse); English text is
// lower-cased, split on non-alphabetic bytes, and length-filtered. Both
// paths remove stop-words loaded from the configured files.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/go-ego/gse"
)

// StopWords is a set of tokens excluded from indexing and retrieval.
type StopWords map[string]struct{}

// LoadStopWords reads one stop-word per line, trimming trailing
// whitespace, skipping blanks, and collapsing duplicates.
func LoadStopWords(path string) (StopWords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-words file %s: %w", path, err)
	}
	defer f.Close()

	stop := make(StopWords)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		stop[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-words file %s: %w", path, err)
	}
	return stop, nil
}

// Contains reports whether word is a stop-word.
func (s StopWords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Tokenizer is the shared segmentation facade.
type Tokenizer struct {
	seg    gse.Segmenter
	cnStop StopWords
	enStop StopWords
}

// New loads the segmenter dictionary (the embedded default when dictPath
// is empty) and attaches the stop-word sets. Either set may be nil.
func New(dictPath string, cnStop, enStop StopWords) (*Tokenizer, error) {
	t := &Tokenizer{cnStop: cnStop, enStop: enStop}
	var err error
	if dictPath != "" {
		err = t.seg.LoadDict(dictPath)
	} else {
		err = t.seg.LoadDict()
	}
	if err != nil {
		return nil, fmt.Errorf("loading segmenter dictionary: %w", err)
	}
	return t, nil
}

// IsCJK reports whether r is a CJK Unified Ideograph (U+4E00..U+9FFF).
func IsCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// HasCJK reports whether s contains at least one CJK ideograph.
func HasCJK(s string) bool {
	for _, r := range s {
		if IsCJK(r) {
			return true
		}
	}
	return false
}

// CutChinese tokenizes corpus text for the Chinese pipeline. Codepoints
// outside U+4E00..U+9FFF and the ASCII space are replaced with a space
// before segmentation; a token survives when it contains a CJK ideograph
// and is not a Chinese stop-word.
func (t *Tokenizer) CutChinese(text string) []string {
	normalized := normalizeCJK(text)
	segs := t.seg.Cut(normalized, true)
	tokens := make([]string, 0, len(segs))
	for _, tok := range segs {
		if !HasCJK(tok) {
			continue
		}
		if t.cnStop.Contains(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// CutQuery tokenizes a free-text search query. The text keeps its ASCII
// content so mixed-script queries work: a token survives when it contains
// a CJK ideograph or is an ASCII-alphabetic word of length >= 2, and is
// not a stop-word of either language.
func (t *Tokenizer) CutQuery(text string) []string {
	segs := t.seg.Cut(text, true)
	tokens := make([]string, 0, len(segs))
	for _, tok := range segs {
		switch {
		case HasCJK(tok):
			if t.cnStop.Contains(tok) {
				continue
			}
		case isASCIIAlpha(tok) && len(tok) >= 2:
			if t.enStop.Contains(tok) {
				continue
			}
		default:
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenizeEnglish tokenizes corpus text for the English pipeline:
// lowercase ASCII letters, every non-alphabetic byte becomes a space,
// tokens shorter than two letters and stop-words are dropped.
func (t *Tokenizer) TokenizeEnglish(text string) []string {
	cleaned := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		b := text[i]
		switch {
		case b >= 'a' && b <= 'z':
			cleaned[i] = b
		case b >= 'A' && b <= 'Z':
			cleaned[i] = b + ('a' - 'A')
		default:
			cleaned[i] = ' '
		}
	}
	words := strings.Fields(string(cleaned))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if t.enStop.Contains(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// normalizeCJK replaces every codepoint that is neither a CJK ideograph
// nor an ASCII space with a single space.
func normalizeCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if IsCJK(r) || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func isASCIIAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if (b < 'a' || b > 'z') && (b < 'A' || b > 'Z') {
			return false
		}
	}
	return true
}
