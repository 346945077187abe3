package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seekwell/seekwell/internal/embedcache"
	"github.com/seekwell/seekwell/internal/model"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }

func newSearchFixture() (*SearchService, *fakeChunkStore, *fakeEmbedder) {
	chunks := newFakeChunkStore()
	embedder := newFakeEmbedder()
	svc := NewSearchService(chunks, embedcache.New(nil, 0, 0), embedder, time.Second, 50, DefaultAlpha)
	return svc, chunks, embedder
}

func hitChunkIDs(hits []model.SearchHit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ChunkID)
	}
	return ids
}

func TestSearchValidation(t *testing.T) {
	svc, _, _ := newSearchFixture()
	ctx := tenantCtx("t1")

	_, err := svc.Search(ctx, SearchInput{Query: "x", K: 10, Mode: "fuzzy"})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Search(ctx, SearchInput{Query: "x", K: 0})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Search(ctx, SearchInput{Query: "x", K: 10, Alpha: floatPtr(1.5)})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Search(ctx, SearchInput{Query: "", K: 10, Mode: ModeSemantic})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Search(ctx, SearchInput{Query: "   ", K: 10, Mode: ModeBM25})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Search(context.Background(), SearchInput{Query: "x", K: 10})
	require.ErrorIs(t, err, appErr.ErrNoTenant)
}

func TestSearchTermlessQueryRejected(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "c1", Content: "alpha", FileType: "markdown", Ctime: 10},
		model.CandidateChunk{ChunkID: "c2", Content: "beta", FileType: "markdown", Ctime: 20},
	)

	// Punctuation tokenizes to nothing; without filters this would be a full
	// scan and must fail the same way an empty query does.
	for _, mode := range []string{ModeBM25, ModeHybrid} {
		_, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "!!!", K: 10, Mode: mode})
		require.ErrorIs(t, err, appErr.ErrInvalid, "mode %s", mode)
	}

	// With filters present a term-less query degrades to the same recency
	// listing as an empty one.
	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "!!!", K: 10, Mode: ModeBM25, FileType: "markdown"})
	require.NoError(t, err)
	require.Equal(t, []string{"c2", "c1"}, hitChunkIDs(hits))
	for _, h := range hits {
		require.Zero(t, h.Score)
	}
}

func TestSearchBM25Ranking(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "c1", DocumentID: "d1", Content: "kafka kafka kafka consumer lag", Ctime: 10},
		model.CandidateChunk{ChunkID: "c2", DocumentID: "d1", Content: "kafka topic retention policy", Ctime: 20},
		model.CandidateChunk{ChunkID: "c3", DocumentID: "d2", Content: "postgres vacuum tuning guide", Ctime: 30},
	)

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "kafka", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, hitChunkIDs(hits))
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchTenantIsolation(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1", model.CandidateChunk{ChunkID: "c1", Content: "secret rollout plan"})
	chunks.add("t2", model.CandidateChunk{ChunkID: "c2", Content: "secret rollout plan"})

	hits, err := svc.Search(tenantCtx("t2"), SearchInput{Query: "rollout", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, hitChunkIDs(hits))
}

func TestSearchSemanticRanksByVector(t *testing.T) {
	svc, chunks, embedder := newSearchFixture()
	embedder.vectors["incident response"] = []float32{1, 0}
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "close", Content: "alerting and paging", Embedding: []float32{0.9, 0.1}},
		model.CandidateChunk{ChunkID: "far", Content: "billing exports", Embedding: []float32{0.1, 0.9}},
		model.CandidateChunk{ChunkID: "pending", Content: "no vector yet"},
	)

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "incident response", K: 10, Mode: ModeSemantic})
	require.NoError(t, err)
	require.Equal(t, []string{"close", "far"}, hitChunkIDs(hits))
}

func TestSearchHybridAlphaZeroMatchesBM25(t *testing.T) {
	svc, chunks, embedder := newSearchFixture()
	embedder.vectors["deploy"] = []float32{1, 0}
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "c1", Content: "deploy deploy deploy checklist", Ctime: 1, Embedding: []float32{0, 1}},
		model.CandidateChunk{ChunkID: "c2", Content: "deploy once then verify", Ctime: 2, Embedding: []float32{1, 0}},
		model.CandidateChunk{ChunkID: "c3", Content: "unrelated text", Ctime: 3, Embedding: []float32{1, 0}},
	)

	bm25Hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	hybridHits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeHybrid, Alpha: floatPtr(0)})
	require.NoError(t, err)
	require.Equal(t, hitChunkIDs(bm25Hits), hitChunkIDs(hybridHits))
}

func TestSearchHybridAlphaOneMatchesSemantic(t *testing.T) {
	svc, chunks, embedder := newSearchFixture()
	embedder.vectors["deploy"] = []float32{1, 0}
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "c1", Content: "deploy checklist", Ctime: 1, Embedding: []float32{0.2, 0.8}},
		model.CandidateChunk{ChunkID: "c2", Content: "rollback notes", Ctime: 2, Embedding: []float32{0.8, 0.2}},
	)

	semanticHits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeSemantic})
	require.NoError(t, err)
	hybridHits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeHybrid, Alpha: floatPtr(1)})
	require.NoError(t, err)
	require.Equal(t, hitChunkIDs(semanticHits), hitChunkIDs(hybridHits))
}

func TestSearchHybridBlendsSignals(t *testing.T) {
	svc, chunks, embedder := newSearchFixture()
	embedder.vectors["deploy"] = []float32{1, 0}
	// Lexical favors c1, vector favors c2. A vector-heavy alpha flips the
	// ranking.
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "c1", Content: "deploy deploy deploy deploy", Ctime: 1, Embedding: []float32{0, 1}},
		model.CandidateChunk{ChunkID: "c2", Content: "deploy quickly", Ctime: 2, Embedding: []float32{1, 0}},
	)

	lexHeavy, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeHybrid, Alpha: floatPtr(0.1)})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, hitChunkIDs(lexHeavy))

	vecHeavy, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "deploy", K: 10, Mode: ModeHybrid, Alpha: floatPtr(0.9)})
	require.NoError(t, err)
	require.Equal(t, []string{"c2", "c1"}, hitChunkIDs(vecHeavy))
}

func TestSearchEmptyQueryWithFiltersListsByRecency(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "old", Content: "alpha", FileType: "markdown", Ctime: 10},
		model.CandidateChunk{ChunkID: "new", Content: "beta", FileType: "markdown", Ctime: 20},
		model.CandidateChunk{ChunkID: "txt", Content: "gamma", FileType: "text", Ctime: 30},
	)

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "", K: 10, Mode: ModeBM25, FileType: "markdown"})
	require.NoError(t, err)
	require.Equal(t, []string{"new", "old"}, hitChunkIDs(hits))
	for _, h := range hits {
		require.Zero(t, h.Score)
	}
}

func TestSearchDateFilters(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "early", Content: "release notes", Ctime: 100},
		model.CandidateChunk{ChunkID: "late", Content: "release notes", Ctime: 300},
	)

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "release", K: 10, Mode: ModeBM25, CreatedAfter: 200})
	require.NoError(t, err)
	require.Equal(t, []string{"late"}, hitChunkIDs(hits))

	hits, err = svc.Search(tenantCtx("t1"), SearchInput{Query: "release", K: 10, Mode: ModeBM25, CreatedBefore: 200})
	require.NoError(t, err)
	require.Equal(t, []string{"early"}, hitChunkIDs(hits))
}

func TestSearchTruncatesToK(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	for i := 0; i < 10; i++ {
		chunks.add("t1", model.CandidateChunk{
			ChunkID: string(rune('a' + i)),
			Content: "shared term",
			Ctime:   int64(i),
		})
	}

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "shared", K: 3, Mode: ModeBM25})
	require.NoError(t, err)
	require.Len(t, hits, 3)
}

func TestSearchClampsKToMax(t *testing.T) {
	chunks := newFakeChunkStore()
	svc := NewSearchService(chunks, embedcache.New(nil, 0, 0), newFakeEmbedder(), time.Second, 2, DefaultAlpha)
	for i := 0; i < 5; i++ {
		chunks.add("t1", model.CandidateChunk{
			ChunkID: string(rune('a' + i)),
			Content: "shared term",
			Ctime:   int64(i),
		})
	}

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "shared", K: 100, Mode: ModeBM25})
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestSearchQueryEmbedFailureFailsTheSearch(t *testing.T) {
	svc, chunks, embedder := newSearchFixture()
	embedder.failMissing = true
	chunks.add("t1", model.CandidateChunk{ChunkID: "c1", Content: "anything", Embedding: []float32{1, 0}})

	_, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "anything", K: 10, Mode: ModeHybrid})
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	// Identical content scores identically; newer Ctime wins, then ChunkID.
	chunks.add("t1",
		model.CandidateChunk{ChunkID: "b", Content: "same words here", Ctime: 10},
		model.CandidateChunk{ChunkID: "a", Content: "same words here", Ctime: 10},
		model.CandidateChunk{ChunkID: "c", Content: "same words here", Ctime: 20},
	)

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "words", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, hitChunkIDs(hits))

	again, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "words", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Equal(t, hitChunkIDs(hits), hitChunkIDs(again))
}

func TestSearchSnippetHighlights(t *testing.T) {
	svc, chunks, _ := newSearchFixture()
	chunks.add("t1", model.CandidateChunk{
		ChunkID: "c1",
		Content: "Scaling the ingest workers requires a Kafka rebalance before restart.",
	})

	hits, err := svc.Search(tenantCtx("t1"), SearchInput{Query: "kafka", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Len(t, hits[0].Highlights, 1)
	hl := hits[0].Highlights[0]
	require.Equal(t, "Kafka", hits[0].Snippet[hl.Start:hl.Start+hl.Length])
}

func TestSearchNoCandidates(t *testing.T) {
	svc, _, _ := newSearchFixture()
	hits, err := svc.Search(tenantCtx("empty"), SearchInput{Query: "anything", K: 10, Mode: ModeBM25})
	require.NoError(t, err)
	require.Empty(t, hits)
}
