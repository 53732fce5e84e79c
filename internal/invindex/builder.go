// Package invindex builds the TF-IDF inverted index over deduplicated
// pages and writes the term-sorted artifact file.
package invindex

import (
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/qianzhou/goso/internal/artifact"
)

// TermPostings pairs a term with its (docid, weight) postings, docids
// ascending.
type TermPostings struct {
	Term     string
	Postings []artifact.Posting
}

// Builder computes per-document L2-normalized TF-IDF weights. Pages are
// tokenized with the Chinese tokenizer only; English corpora have their
// own artifacts and are not indexed for page search.
type Builder struct {
	tokenize func(string) []string
	logger   *slog.Logger
}

// NewBuilder creates a Builder over the given tokenizer function.
func NewBuilder(tokenize func(string) []string) *Builder {
	return &Builder{
		tokenize: tokenize,
		logger:   slog.Default().With("component", "invindex-builder"),
	}
}

// Build computes the weighted postings for the kept pages.
func (b *Builder) Build(pages []artifact.Page) []TermPostings {
	// tf[term][docid] and document frequency df[term]
	tf := make(map[string]map[int]int)
	docTerms := make(map[int][]string)
	for _, page := range pages {
		tokens := b.tokenize(page.Content)
		for _, term := range tokens {
			perDoc, ok := tf[term]
			if !ok {
				perDoc = make(map[int]int)
				tf[term] = perDoc
			}
			if perDoc[page.DocID] == 0 {
				docTerms[page.DocID] = append(docTerms[page.DocID], term)
			}
			perDoc[page.DocID]++
		}
		b.logger.Debug("page tokenized", "docid", page.DocID, "tokens", len(tokens))
	}

	n := float64(len(pages))
	idf := make(map[string]float64, len(tf))
	for term, perDoc := range tf {
		// +1 guards N/df against a zero divisor; a negative idf is kept as-is
		idf[term] = math.Log2(n / float64(len(perDoc)+1))
	}

	// raw weights and per-document L2 norms
	weights := make(map[string]map[int]float64, len(tf))
	norms := make(map[int]float64)
	for term, perDoc := range tf {
		perDocW := make(map[int]float64, len(perDoc))
		for docid, count := range perDoc {
			w := float64(count) * idf[term]
			perDocW[docid] = w
			norms[docid] += w * w
		}
		weights[term] = perDocW
	}
	for docid, sum := range norms {
		norms[docid] = math.Sqrt(sum)
	}

	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	entries := make([]TermPostings, 0, len(terms))
	for _, term := range terms {
		perDocW := weights[term]
		docids := make([]int, 0, len(perDocW))
		for docid := range perDocW {
			docids = append(docids, docid)
		}
		sort.Ints(docids)
		postings := make([]artifact.Posting, 0, len(docids))
		for _, docid := range docids {
			w := perDocW[docid]
			if norm := norms[docid]; norm > 0 {
				w /= norm
			}
			if w == 0 {
				continue
			}
			postings = append(postings, artifact.Posting{DocID: docid, Weight: w})
		}
		if len(postings) > 0 {
			entries = append(entries, TermPostings{Term: term, Postings: postings})
		}
	}
	b.logger.Info("inverted index built", "terms", len(entries), "docs", len(pages))
	return entries
}

// WriteFile serializes entries into inverted_index.dat under outDir, one
// term per line with 6-digit fixed-precision weights.
func WriteFile(outDir string, entries []TermPostings) error {
	path := filepath.Join(outDir, artifact.InvertedFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating inverted index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.Term); err != nil {
			return fmt.Errorf("writing inverted index: %w", err)
		}
		for _, p := range e.Postings {
			if _, err := fmt.Fprintf(w, " %d %.6f", p.DocID, p.Weight); err != nil {
				return fmt.Errorf("writing inverted index: %w", err)
			}
		}
		if _, err := w.WriteString("\n"); err != nil {
			return fmt.Errorf("writing inverted index: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing inverted index: %w", err)
	}
	return nil
}
