package service

import (
	"math"
	"strings"
	"unicode"

	"github.com/seekwell/seekwell/internal/model"
)

// BM25 parameters. Documented defaults, not tuned per corpus.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// tokenize lowercases and splits on anything that is not a letter or digit.
// The same tokenizer is applied to queries and chunk text so term matching
// is symmetric.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// bm25Scores computes a lexical relevance score per candidate for the query
// terms. Document frequencies come from the candidate set itself: scores are
// local to the query's candidate pool, which keeps ranking deterministic for
// a fixed snapshot.
func bm25Scores(candidates []model.CandidateChunk, terms []string) []float64 {
	scores := make([]float64, len(candidates))
	if len(candidates) == 0 || len(terms) == 0 {
		return scores
	}

	termFreqs := make([]map[string]int, len(candidates))
	docLens := make([]float64, len(candidates))
	var totalLen float64
	for i, cand := range candidates {
		tokens := tokenize(cand.Content)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		termFreqs[i] = freq
		docLens[i] = float64(len(tokens))
		totalLen += docLens[i]
	}
	avgLen := totalLen / float64(len(candidates))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(candidates))
	for _, term := range terms {
		df := 0.0
		for i := range candidates {
			if termFreqs[i][term] > 0 {
				df++
			}
		}
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for i := range candidates {
			tf := float64(termFreqs[i][term])
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*docLens[i]/avgLen)
			scores[i] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}
	return scores
}

// normalizeByMax rescales scores into [0,1] against the candidate set's
// maximum so the lexical signal is comparable to the vector signal.
func normalizeByMax(scores []float64) []float64 {
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return scores
	}
	normalized := make([]float64, len(scores))
	for i, s := range scores {
		normalized[i] = s / maxScore
	}
	return normalized
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// vectorScore maps cosine similarity from [-1,1] into [0,1].
func vectorScore(query, candidate []float32) float64 {
	if len(candidate) == 0 || len(query) == 0 {
		return 0
	}
	return (cosineSimilarity(query, candidate) + 1) / 2
}
