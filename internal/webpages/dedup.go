package webpages

import (
	"log/slog"
	"sort"

	"github.com/mfonda/simhash"

	"github.com/qianzhou/goso/internal/artifact"
)

// Fingerprinter produces 64-bit SimHash fingerprints from the weighted
// top-K tokens of a page.
type Fingerprinter struct {
	tokenize func(string) []string
	topK     int
}

// NewFingerprinter builds fingerprints over tokens from tokenize, keeping
// the topK most frequent tokens as weighted features.
func NewFingerprinter(tokenize func(string) []string, topK int) *Fingerprinter {
	return &Fingerprinter{tokenize: tokenize, topK: topK}
}

// Fingerprint computes the SimHash of content.
func (fp *Fingerprinter) Fingerprint(content string) uint64 {
	freq := make(map[string]int)
	for _, tok := range fp.tokenize(content) {
		freq[tok]++
	}
	type tokenWeight struct {
		token  string
		weight int
	}
	weighted := make([]tokenWeight, 0, len(freq))
	for tok, n := range freq {
		weighted = append(weighted, tokenWeight{token: tok, weight: n})
	}
	// ties broken by token so the feature set is deterministic
	sort.Slice(weighted, func(i, j int) bool {
		if weighted[i].weight != weighted[j].weight {
			return weighted[i].weight > weighted[j].weight
		}
		return weighted[i].token < weighted[j].token
	})
	if len(weighted) > fp.topK {
		weighted = weighted[:fp.topK]
	}
	features := make([]simhash.Feature, 0, len(weighted))
	for _, w := range weighted {
		features = append(features, simhash.NewFeatureWithWeight([]byte(w.token), w.weight))
	}
	return simhash.Fingerprint(simhash.Vectorize(features))
}

// Deduplicate walks pages in document order and keeps a page only when no
// previously kept fingerprint lies within threshold Hamming distance.
func Deduplicate(pages []artifact.Page, fp *Fingerprinter, threshold int) []artifact.Page {
	logger := slog.Default().With("component", "page-dedup")
	kept := make([]artifact.Page, 0, len(pages))
	keptHashes := make([]uint64, 0, len(pages))

	for _, page := range pages {
		hash := fp.Fingerprint(page.Content)
		duplicate := false
		for _, prev := range keptHashes {
			if int(simhash.Compare(hash, prev)) <= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			logger.Debug("near-duplicate page dropped", "docid", page.DocID)
			continue
		}
		kept = append(kept, page)
		keptHashes = append(keptHashes, hash)
	}
	logger.Info("deduplication finished",
		"input", len(pages),
		"kept", len(kept),
		"dropped", len(pages)-len(kept),
	)
	return kept
}
