// Package dedup removes exact and near-duplicate Q&A pairs.
package dedup

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/evdata/chargepipe/internal/models"
)

type DeduperConfig struct {
	// Threshold is the normalized similarity in (0, 1] at or above which a
	// later question is dropped in favor of the first-kept one.
	Threshold float64
}

// Deduper filters Q&A pairs with exact matching first, then pairwise fuzzy
// similarity over questions. Comparison is O(n^2) over kept pairs, which is
// fine at dataset sizes this pipeline produces.
type Deduper struct {
	config DeduperConfig
}

func NewWithConfig(config DeduperConfig) Deduper {
	if config.Threshold <= 0 || config.Threshold > 1 {
		config.Threshold = 0.9
	}

	return Deduper{
		config: config,
	}
}

// Deduplicate returns the pairs surviving both passes, in input order.
// Ties are broken by keeping the first-encountered record, so running it
// again on its own output removes nothing.
func (d Deduper) Deduplicate(pairs []models.QAPair) []models.QAPair {
	seenExact := make(map[[2]string]struct{}, len(pairs))
	kept := make([]models.QAPair, 0, len(pairs))

	for _, pair := range pairs {
		key := [2]string{normalize(pair.Question), normalize(pair.Answer)}
		if _, ok := seenExact[key]; ok {
			continue
		}
		seenExact[key] = struct{}{}

		if d.hasFuzzyDuplicate(pair.Question, kept) {
			continue
		}
		kept = append(kept, pair)
	}

	return kept
}

// Similarity scores two questions in [0, 1] using a token-set variant of the
// normalized edit-distance ratio: both questions are reduced to sorted token
// sets so reordered phrasings of the same question still score high.
func (d Deduper) Similarity(q1, q2 string) float64 {
	set1 := tokenSet(q1)
	set2 := tokenSet(q2)

	var common, only1, only2 []string
	for _, tok := range set1 {
		if contains(set2, tok) {
			common = append(common, tok)
		} else {
			only1 = append(only1, tok)
		}
	}
	for _, tok := range set2 {
		if !contains(set1, tok) {
			only2 = append(only2, tok)
		}
	}

	base := strings.Join(common, " ")
	s1 := strings.TrimSpace(base + " " + strings.Join(only1, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(only2, " "))

	score := levenshtein.Similarity(base, s1, nil)
	if v := levenshtein.Similarity(base, s2, nil); v > score {
		score = v
	}
	if v := levenshtein.Similarity(s1, s2, nil); v > score {
		score = v
	}
	return score
}

func tokenSet(s string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

func contains(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func (d Deduper) hasFuzzyDuplicate(question string, kept []models.QAPair) bool {
	for _, other := range kept {
		if d.Similarity(question, other.Question) >= d.config.Threshold {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
