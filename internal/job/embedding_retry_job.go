package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seekwell/seekwell/internal/ai"
	"github.com/seekwell/seekwell/internal/embedcache"
	"github.com/seekwell/seekwell/internal/model"
	"github.com/seekwell/seekwell/internal/tenant"
)

const embedTaskDocument = "RETRIEVAL_DOCUMENT"

// The sweep's view of the stores, narrowed so the job can be exercised
// without a database.
type ChunkSource interface {
	ListPendingTenants(ctx context.Context, provider, modelName string, limit int) ([]string, error)
	ListPending(ctx context.Context, scope tenant.Scope, provider, modelName string, limit int) ([]model.Chunk, error)
	CountPendingByDocument(ctx context.Context, scope tenant.Scope, docID, provider, modelName string) (int, error)
}

type EmbeddingSink interface {
	Upsert(ctx context.Context, scope tenant.Scope, emb *model.ChunkEmbedding) error
}

type DocumentStateSink interface {
	SetEmbedState(ctx context.Context, scope tenant.Scope, docID, embedState string, mtime int64) error
}

// EmbeddingRetryJob re-embeds chunks whose vectors are still missing after
// ingestion, one tenant at a time under a system scope. A document flips to
// full only when its last pending chunk lands.
type EmbeddingRetryJob struct {
	chunks     ChunkSource
	embeddings EmbeddingSink
	docs       DocumentStateSink
	cache      *embedcache.Cache
	embedder   ai.IEmbedder
	batchSize  int
}

func NewEmbeddingRetryJob(chunks ChunkSource, embeddings EmbeddingSink, docs DocumentStateSink, cache *embedcache.Cache, embedder ai.IEmbedder, batchSize int) *EmbeddingRetryJob {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &EmbeddingRetryJob{
		chunks:     chunks,
		embeddings: embeddings,
		docs:       docs,
		cache:      cache,
		embedder:   embedder,
		batchSize:  batchSize,
	}
}

func (j *EmbeddingRetryJob) Name() string {
	return "embedding_retry"
}

func (j *EmbeddingRetryJob) Run(ctx context.Context) error {
	if j.embedder == nil {
		return nil
	}
	tenants, err := j.chunks.ListPendingTenants(ctx, j.embedder.Provider(), j.embedder.ModelName(), j.batchSize)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		if err := j.sweepTenant(ctx, tenantID); err != nil {
			logutil.GetLogger(ctx).Error("embedding sweep failed for tenant",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (j *EmbeddingRetryJob) sweepTenant(ctx context.Context, tenantID string) error {
	scope, err := tenant.SystemScope(tenantID)
	if err != nil {
		return err
	}
	pending, err := j.chunks.ListPending(ctx, scope, j.embedder.Provider(), j.embedder.ModelName(), j.batchSize)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", tenantID))

	touched := make(map[string]struct{})
	embedded, failed := 0, 0
	for _, chunk := range pending {
		if err := j.embedChunk(ctx, scope, &chunk); err != nil {
			failed++
			logger.Warn("retry embedding failed",
				zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		embedded++
		touched[chunk.DocumentID] = struct{}{}
	}
	if embedded > 0 || failed > 0 {
		logger.Info("embedding sweep pass",
			zap.Int("embedded", embedded), zap.Int("failed", failed))
	}

	for docID := range touched {
		remaining, err := j.chunks.CountPendingByDocument(ctx, scope, docID, j.embedder.Provider(), j.embedder.ModelName())
		if err != nil {
			logger.Warn("failed to count pending chunks", zap.String("document_id", docID), zap.Error(err))
			continue
		}
		if remaining > 0 {
			continue
		}
		if err := j.docs.SetEmbedState(ctx, scope, docID, model.EmbedStateFull, time.Now().Unix()); err != nil {
			logger.Warn("failed to mark document full", zap.String("document_id", docID), zap.Error(err))
		}
	}
	return nil
}

func (j *EmbeddingRetryJob) embedChunk(ctx context.Context, scope tenant.Scope, chunk *model.Chunk) error {
	values, err := j.cache.GetOrCompute(ctx, chunk.Content, j.embedder.Provider(), j.embedder.ModelName(), func(c context.Context) ([]float32, error) {
		return j.embedder.Embed(c, chunk.Content, embedTaskDocument)
	})
	if err != nil {
		return err
	}
	return j.embeddings.Upsert(ctx, scope, &model.ChunkEmbedding{
		ID:          uuid.NewString(),
		ChunkID:     chunk.ID,
		Provider:    j.embedder.Provider(),
		ModelName:   j.embedder.ModelName(),
		Dim:         len(values),
		ContentHash: j.cache.Digest(chunk.Content),
		Ctime:       time.Now().Unix(),
	})
}
