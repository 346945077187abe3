package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seekwell/seekwell/internal/ai"
	"github.com/seekwell/seekwell/internal/embedcache"
	"github.com/seekwell/seekwell/internal/model"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/repo"
	"github.com/seekwell/seekwell/internal/tenant"
)

const (
	ModeBM25     = "bm25"
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

const DefaultAlpha = 0.6

type SearchService struct {
	chunks       ChunkStore
	cache        *embedcache.Cache
	embedder     ai.IEmbedder
	embedTimeout time.Duration
	maxK         int
	defaultAlpha float64
}

func NewSearchService(chunks ChunkStore, cache *embedcache.Cache, embedder ai.IEmbedder, embedTimeout time.Duration, maxK int, defaultAlpha float64) *SearchService {
	if maxK <= 0 {
		maxK = 100
	}
	if defaultAlpha <= 0 || defaultAlpha > 1 {
		defaultAlpha = DefaultAlpha
	}
	return &SearchService{
		chunks:       chunks,
		cache:        cache,
		embedder:     embedder,
		embedTimeout: embedTimeout,
		maxK:         maxK,
		defaultAlpha: defaultAlpha,
	}
}

type SearchInput struct {
	Query string
	K     int
	Mode  string
	// Alpha weights the vector signal; nil means the default 0.6.
	Alpha         *float64
	FileType      string
	CreatedAfter  int64
	CreatedBefore int64
}

func (in SearchInput) hasFilters() bool {
	return in.FileType != "" || in.CreatedAfter > 0 || in.CreatedBefore > 0
}

// Search blends lexical and vector relevance over the tenant's candidate
// chunks. All parameter problems are local validation errors, never partial
// results.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]model.SearchHit, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	mode := input.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	if mode != ModeBM25 && mode != ModeSemantic && mode != ModeHybrid {
		return nil, fmt.Errorf("%w: unknown mode %q", appErr.ErrInvalid, input.Mode)
	}
	if input.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", appErr.ErrInvalid)
	}
	k := input.K
	if k > s.maxK {
		k = s.maxK
	}
	alpha := s.defaultAlpha
	if input.Alpha != nil {
		alpha = *input.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be in [0,1]", appErr.ErrInvalid)
	}
	query := strings.TrimSpace(input.Query)
	terms := tokenize(query)
	if query == "" && mode == ModeSemantic {
		return nil, fmt.Errorf("%w: query is required in semantic mode", appErr.ErrInvalid)
	}
	if len(terms) == 0 && mode != ModeSemantic && !input.hasFilters() {
		// Judged on the tokenized terms, not the raw string: a punctuation-only
		// query carries no lexical signal either, and without filters it would
		// be an unranked full scan.
		return nil, fmt.Errorf("%w: query or filters required", appErr.ErrInvalid)
	}

	logger := logutil.GetLogger(ctx).With(
		zap.String("tenant_id", scope.TenantID()),
		zap.String("mode", mode),
		zap.Int("k", k),
	)

	candidates, err := s.chunks.ListCandidates(ctx, scope, s.embedder.Provider(), s.embedder.ModelName(), repo.CandidateFilter{
		FileType:      input.FileType,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []model.SearchHit{}, nil
	}

	var queryVec []float32
	if mode != ModeBM25 && query != "" {
		embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
		queryVec, err = s.cache.GetOrCompute(embedCtx, query, s.embedder.Provider(), s.embedder.ModelName(), func(c context.Context) ([]float32, error) {
			return s.embedder.Embed(c, query, "RETRIEVAL_QUERY")
		})
		cancel()
		if err != nil {
			logger.Error("failed to embed query", zap.Error(err))
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	lexical := normalizeByMax(bm25Scores(candidates, terms))

	type scored struct {
		idx   int
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for i, cand := range candidates {
		hasVector := len(cand.Embedding) > 0
		if mode == ModeSemantic && !hasVector {
			// Pending embeddings are only reachable lexically.
			continue
		}
		var score float64
		switch mode {
		case ModeBM25:
			score = lexical[i]
		case ModeSemantic:
			score = vectorScore(queryVec, cand.Embedding)
		default:
			score = alpha*vectorScore(queryVec, cand.Embedding) + (1-alpha)*lexical[i]
		}
		if score == 0 && len(terms) > 0 {
			// No signal from either side; a candidate only surfaces on the
			// filter-listing path where there are no query terms at all.
			continue
		}
		results = append(results, scored{idx: i, score: score})
	}

	sort.SliceStable(results, func(a, b int) bool {
		ca, cb := candidates[results[a].idx], candidates[results[b].idx]
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		if ca.Ctime != cb.Ctime {
			return ca.Ctime > cb.Ctime
		}
		if ca.Ordinal != cb.Ordinal {
			return ca.Ordinal < cb.Ordinal
		}
		return ca.ChunkID < cb.ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}

	hits := make([]model.SearchHit, 0, len(results))
	for _, res := range results {
		cand := candidates[res.idx]
		snippet, highlights := buildSnippet(cand.Content, terms)
		hits = append(hits, model.SearchHit{
			DocumentID: cand.DocumentID,
			ChunkID:    cand.ChunkID,
			Title:      cand.Title,
			Snippet:    snippet,
			Highlights: highlights,
			Ordinal:    cand.Ordinal,
			Score:      res.score,
		})
	}
	logger.Debug("search completed", zap.Int("candidates", len(candidates)), zap.Int("hits", len(hits)))
	return hits, nil
}
