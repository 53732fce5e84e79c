// Package recommend implements the keyword recommendation engine:
// character-index candidate generation followed by edit-distance ranking.
package recommend

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/internal/cache"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/pkg/config"
)

// MaxK caps how many candidates one request may ask for.
const MaxK = 50

// Candidate is one ranked recommendation.
type Candidate struct {
	Word         string `json:"word"`
	EditDistance int    `json:"editDistance"`
	Frequency    int    `json:"frequency"`
}

type resultKey struct {
	Query string
	K     int
}

type distKey struct {
	A string
	B string
}

// Recommender ranks lexicon words near a possibly misspelled query.
type Recommender struct {
	readers         *artifact.Readers
	maxEditDistance int
	results         *cache.LRU[resultKey, []Candidate]
	distances       *cache.LRU[distKey, int]
	logger          *slog.Logger
}

// New creates a Recommender over loaded artifact readers.
func New(readers *artifact.Readers, cfg config.RecommendConfig) (*Recommender, error) {
	results, err := cache.New[resultKey, []Candidate](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating recommendation cache: %w", err)
	}
	distances, err := cache.New[distKey, int](cfg.EditDistanceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating edit-distance cache: %w", err)
	}
	return &Recommender{
		readers:         readers,
		maxEditDistance: cfg.MaxEditDistance,
		results:         results,
		distances:       distances,
		logger:          slog.Default().With("component", "recommender"),
	}, nil
}

// Recommend returns up to k lexicon words ranked by (edit distance asc,
// frequency desc, word asc). An empty query or k <= 0 yields an empty
// list.
func (r *Recommender) Recommend(query string, k int) []Candidate {
	if query == "" || k <= 0 {
		return []Candidate{}
	}
	if k > MaxK {
		k = MaxK
	}
	key := resultKey{Query: query, K: k}
	if cached, ok := r.results.Get(key); ok {
		return cached
	}

	lang := artifact.English
	if tokenizer.HasCJK(query) {
		lang = artifact.Chinese
	}
	candidates := r.score(query, r.findCandidates(query, lang))

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.EditDistance != b.EditDistance {
			return a.EditDistance < b.EditDistance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Word < b.Word
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	r.logger.Debug("recommendation computed", "query", query, "k", k, "candidates", len(candidates))
	r.results.Put(key, candidates)
	return candidates
}

// findCandidates unions the index postings of every query character and
// resolves the line numbers against the selected lexicon.
func (r *Recommender) findCandidates(query string, lang artifact.Lang) []string {
	lines := make(map[int]struct{})
	if lang == artifact.Chinese {
		for _, ch := range query {
			for _, line := range r.readers.LineNumbers(lang, string(ch)) {
				lines[line] = struct{}{}
			}
		}
	} else {
		for i := 0; i < len(query); i++ {
			b := query[i]
			if b >= 'A' && b <= 'Z' {
				b += 'a' - 'A'
			}
			if b < 'a' || b > 'z' {
				continue
			}
			for _, line := range r.readers.LineNumbers(lang, string(b)) {
				lines[line] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{}, len(lines))
	words := make([]string, 0, len(lines))
	for line := range lines {
		word := r.readers.WordAt(lang, line)
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}

func (r *Recommender) score(query string, words []string) []Candidate {
	candidates := make([]Candidate, 0, len(words))
	for _, word := range words {
		dist := r.Distance(query, word)
		if dist > r.maxEditDistance {
			continue
		}
		freq := r.readers.Frequency(artifact.Chinese, word)
		if freq == 0 {
			freq = r.readers.Frequency(artifact.English, word)
		}
		candidates = append(candidates, Candidate{
			Word:         word,
			EditDistance: dist,
			Frequency:    freq,
		})
	}
	return candidates
}

// Distance returns the Levenshtein distance over the character sequences
// of a and b. Both orientations of the memo key are probed before
// computing.
func (r *Recommender) Distance(a, b string) int {
	if cached, ok := r.distances.Get(distKey{A: a, B: b}); ok {
		return cached
	}
	if cached, ok := r.distances.Get(distKey{A: b, B: a}); ok {
		return cached
	}
	dist := levenshtein.ComputeDistance(a, b)
	r.distances.Put(distKey{A: a, B: b}, dist)
	return dist
}

// CacheStats returns the result-cache and edit-distance-cache counters.
func (r *Recommender) CacheStats() (results, distances cache.Stats) {
	return r.results.Stats(), r.distances.Stats()
}
