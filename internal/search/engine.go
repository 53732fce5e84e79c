// Package search implements the vector-space web-page search engine:
// query tokenization, posting-list intersection, cosine scoring over
// L2-normalized TF-IDF vectors, and result materialization with
// highlighted summaries.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/internal/cache"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/pkg/config"
	pkgredis "github.com/qianzhou/goso/pkg/redis"
)

// MaxTopN caps how many results one request may ask for.
const MaxTopN = 20

const redisKeyPrefix = "search:"

// Result is one scored page in a search response.
type Result struct {
	DocID   int     `json:"docid"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

type searchKey struct {
	Query string
	TopN  int
}

// Engine executes web-page searches against loaded artifacts. The
// in-process LRU is the hot path; an optional Redis tier sits behind it.
type Engine struct {
	readers          *artifact.Readers
	tok              *tokenizer.Tokenizer
	maxSummaryLength int
	results          *cache.LRU[searchKey, []Result]
	redis            *pkgredis.Client
	redisCfg         config.RedisConfig
	group            singleflight.Group
	logger           *slog.Logger
}

// New creates an Engine. redisClient may be nil to disable the second
// cache tier.
func New(readers *artifact.Readers, tok *tokenizer.Tokenizer, cfg config.SearchConfig, redisClient *pkgredis.Client, redisCfg config.RedisConfig) (*Engine, error) {
	results, err := cache.New[searchKey, []Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating search cache: %w", err)
	}
	return &Engine{
		readers:          readers,
		tok:              tok,
		maxSummaryLength: cfg.MaxSummaryLength,
		results:          results,
		redis:            redisClient,
		redisCfg:         redisCfg,
		logger:           slog.Default().With("component", "search-engine"),
	}, nil
}

// Search returns the topN pages ranked by cosine similarity. An empty or
// stop-word-only query, or topN <= 0, yields an empty list.
func (e *Engine) Search(ctx context.Context, query string, topN int) ([]Result, error) {
	normalized := Normalize(query)
	if normalized == "" || topN <= 0 {
		return []Result{}, nil
	}
	if topN > MaxTopN {
		topN = MaxTopN
	}
	key := searchKey{Query: normalized, TopN: topN}
	if cached, ok := e.results.Get(key); ok {
		return cached, nil
	}
	if cached, ok := e.redisGet(ctx, key); ok {
		e.results.Put(key, cached)
		return cached, nil
	}

	flightKey := fmt.Sprintf("%s\x00%d", normalized, topN)
	v, err, _ := e.group.Do(flightKey, func() (interface{}, error) {
		results, err := e.execute(ctx, normalized, topN)
		if err != nil {
			return nil, err
		}
		// only non-empty results are worth caching
		if len(results) > 0 {
			e.results.Put(key, results)
			e.redisSet(ctx, key, results)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

func (e *Engine) execute(ctx context.Context, query string, topN int) ([]Result, error) {
	tokens := e.tok.CutQuery(query)
	if len(tokens) == 0 {
		return []Result{}, nil
	}

	candidates := e.intersect(tokens)
	if len(candidates) == 0 {
		e.logger.Debug("no candidates after intersection", "query", query)
		return []Result{}, nil
	}

	queryVec := e.queryVector(tokens)
	scored := e.scoreCandidates(candidates, queryVec)
	if len(scored) == 0 {
		return []Result{}, nil
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].docid < scored[j].docid
	})
	if len(scored) > topN {
		scored = scored[:topN]
	}

	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		page, err := e.readers.Pages().PageAt(s.docid)
		if err != nil {
			return nil, fmt.Errorf("materializing docid %d: %w", s.docid, err)
		}
		results = append(results, Result{
			DocID:   page.DocID,
			Title:   page.Title,
			URL:     page.Link,
			Summary: buildSummary(page.Content, tokens, e.maxSummaryLength),
			Score:   s.score,
		})
	}
	e.logger.Info("search executed",
		"query", query,
		"tokens", len(tokens),
		"candidates", len(candidates),
		"results", len(results),
	)
	return results, nil
}

// intersect computes the docid set present in every token's posting list.
func (e *Engine) intersect(tokens []string) map[int]struct{} {
	candidates := make(map[int]struct{})
	for _, p := range e.readers.Postings(tokens[0]) {
		candidates[p.DocID] = struct{}{}
	}
	for _, token := range tokens[1:] {
		if len(candidates) == 0 {
			return nil
		}
		docSet := make(map[int]struct{})
		for _, p := range e.readers.Postings(token) {
			docSet[p.DocID] = struct{}{}
		}
		for docid := range candidates {
			if _, ok := docSet[docid]; !ok {
				delete(candidates, docid)
			}
		}
	}
	return candidates
}

// queryVector builds the L2-normalized TF-IDF vector of the query over
// tokens present in the index.
func (e *Engine) queryVector(tokens []string) map[string]float64 {
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	n := float64(e.readers.DocCount())
	vec := make(map[string]float64, len(counts))
	var normSq float64
	for term, tf := range counts {
		if !e.readers.HasTerm(term) {
			continue
		}
		df := len(e.readers.Postings(term))
		idf := math.Log2(n / float64(df+1))
		w := float64(tf) * idf
		vec[term] = w
		normSq += w * w
	}
	if normSq > 0 {
		l2 := math.Sqrt(normSq)
		for term := range vec {
			vec[term] /= l2
		}
	}
	return vec
}

type scoredDoc struct {
	docid int
	score float64
}

// scoreCandidates computes the cosine similarity of each candidate: both
// vectors are L2-normalized, so the dot product suffices. Zero scores are
// discarded.
func (e *Engine) scoreCandidates(candidates map[int]struct{}, queryVec map[string]float64) []scoredDoc {
	scores := make(map[int]float64, len(candidates))
	for term, qw := range queryVec {
		for _, p := range e.readers.Postings(term) {
			if _, ok := candidates[p.DocID]; !ok {
				continue
			}
			scores[p.DocID] += qw * p.Weight
		}
	}
	scored := make([]scoredDoc, 0, len(scores))
	for docid, score := range scores {
		if score == 0 {
			continue
		}
		scored = append(scored, scoredDoc{docid: docid, score: score})
	}
	return scored
}

// Normalize trims the query, collapses inner whitespace runs to a single
// space, lower-cases ASCII letters, and applies NFC.
func Normalize(query string) string {
	query = norm.NFC.String(query)
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = lowerASCII(f)
	}
	return strings.Join(fields, " ")
}

func lowerASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// CacheStats returns the in-process result-cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.results.Stats()
}

func (e *Engine) redisGet(ctx context.Context, key searchKey) ([]Result, bool) {
	if e.redis == nil {
		return nil, false
	}
	data, err := e.redis.Get(ctx, e.redisKey(key))
	if err != nil {
		if !pkgredis.IsNilError(err) {
			e.logger.Error("redis get failed", "error", err)
		}
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		e.logger.Error("redis unmarshal failed", "error", err)
		return nil, false
	}
	return results, true
}

func (e *Engine) redisSet(ctx context.Context, key searchKey, results []Result) {
	if e.redis == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		e.logger.Error("redis marshal failed", "error", err)
		return
	}
	if err := e.redis.Set(ctx, e.redisKey(key), data, e.redisCfg.CacheTTL); err != nil {
		e.logger.Error("redis set failed", "error", err)
	}
}

func (e *Engine) redisKey(key searchKey) string {
	raw := fmt.Sprintf("%s:topn=%d", key.Query, key.TopN)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", redisKeyPrefix, hash[:16])
}
