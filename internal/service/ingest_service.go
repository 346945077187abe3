package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seekwell/seekwell/internal/ai"
	"github.com/seekwell/seekwell/internal/chunker"
	"github.com/seekwell/seekwell/internal/embedcache"
	"github.com/seekwell/seekwell/internal/extract"
	"github.com/seekwell/seekwell/internal/model"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/pkg/hashutil"
	"github.com/seekwell/seekwell/internal/tenant"
)

const embedTaskDocument = "RETRIEVAL_DOCUMENT"

type IngestService struct {
	docs             DocumentStore
	chunks           ChunkStore
	embeddings       EmbeddingStore
	cache            *embedcache.Cache
	embedder         ai.IEmbedder
	splitter         *chunker.Chunker
	embedTimeout     time.Duration
	embedConcurrency int
}

func NewIngestService(
	docs DocumentStore,
	chunks ChunkStore,
	embeddings EmbeddingStore,
	cache *embedcache.Cache,
	embedder ai.IEmbedder,
	splitter *chunker.Chunker,
	embedTimeout time.Duration,
	embedConcurrency int,
) *IngestService {
	if embedConcurrency <= 0 {
		embedConcurrency = 4
	}
	return &IngestService{
		docs:             docs,
		chunks:           chunks,
		embeddings:       embeddings,
		cache:            cache,
		embedder:         embedder,
		splitter:         splitter,
		embedTimeout:     embedTimeout,
		embedConcurrency: embedConcurrency,
	}
}

type IngestInput struct {
	Title       string
	Content     string
	ContentType string
	Source      string
	FilePath    string
	Lang        string
	Tags        []string
}

type IngestResult struct {
	DocumentID   string `json:"document_id"`
	Title        string `json:"title"`
	ChunkCount   int    `json:"chunk_count"`
	EmbedState   string `json:"embed_state"`
	Version      int    `json:"version"`
	Deduplicated bool   `json:"deduplicated"`
}

// Ingest runs the pipeline: extract, digest, dedup, chunk, persist
// transactionally, then embed best-effort. Only extraction and chunk
// persistence can fail the ingestion; embedding failures degrade the
// document to partial and are retried by the background sweep.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", scope.TenantID()))

	text, err := extract.Text(input.Content, input.ContentType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: content is empty", appErr.ErrInvalid)
	}
	contentHash := hashutil.Digest(text)

	// Idempotent re-ingest: byte-identical content for the same tenant maps
	// to the existing document without re-chunking.
	if existing, err := s.docs.GetByContentHash(ctx, scope, contentHash); err == nil {
		logger.Info("ingest deduplicated", zap.String("document_id", existing.ID))
		return dedupResult(existing), nil
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}

	drafts := s.splitter.Chunk(text)
	now := time.Now().Unix()
	doc := &model.Document{
		ID:          uuid.NewString(),
		TenantID:    scope.TenantID(),
		Title:       input.Title,
		Content:     text,
		Lang:        input.Lang,
		Source:      input.Source,
		FilePath:    input.FilePath,
		FileType:    normalizeFileType(input.ContentType),
		FileSize:    int64(len(input.Content)),
		ContentHash: contentHash,
		ChunkCount:  len(drafts),
		EmbedState:  model.EmbedStateChunked,
		Tags:        input.Tags,
		State:       model.DocumentStateNormal,
		Version:     1,
		Ctime:       now,
		Mtime:       now,
	}
	chunks := buildChunks(scope, doc.ID, drafts, now)

	if err := s.docs.CreateWithChunks(ctx, scope, doc, chunks); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			// A concurrent ingestion of the same content won the race;
			// both callers succeed against the single surviving row.
			existing, getErr := s.docs.GetByContentHash(ctx, scope, contentHash)
			if getErr != nil {
				return nil, getErr
			}
			logger.Info("ingest deduplicated after conflict", zap.String("document_id", existing.ID))
			return dedupResult(existing), nil
		}
		return nil, fmt.Errorf("persist document: %w", err)
	}
	logger.Info("document chunked",
		zap.String("document_id", doc.ID),
		zap.Int("chunk_count", len(chunks)),
	)

	embedState := s.embedChunks(ctx, scope, chunks)
	if err := s.docs.SetEmbedState(ctx, scope, doc.ID, embedState, time.Now().Unix()); err != nil {
		logger.Warn("failed to update embed state", zap.Error(err))
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		ChunkCount: len(chunks),
		EmbedState: embedState,
		Version:    doc.Version,
	}, nil
}

// Reingest replaces a document's content in place. The version increments
// only when the content actually changed; re-submitting identical bytes is
// the no-op dedup path.
func (s *IngestService) Reingest(ctx context.Context, docID string, input IngestInput) (*IngestResult, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.docs.GetByID(ctx, scope, docID)
	if err != nil {
		return nil, err
	}
	text, err := extract.Text(input.Content, input.ContentType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: content is empty", appErr.ErrInvalid)
	}
	contentHash := hashutil.Digest(text)
	if contentHash == existing.ContentHash {
		return dedupResult(existing), nil
	}

	drafts := s.splitter.Chunk(text)
	now := time.Now().Unix()
	updated := *existing
	updated.Content = text
	updated.ContentHash = contentHash
	updated.ChunkCount = len(drafts)
	updated.EmbedState = model.EmbedStateChunked
	updated.Version = existing.Version + 1
	updated.Mtime = now
	if input.Title != "" {
		updated.Title = input.Title
	}
	if input.Tags != nil {
		updated.Tags = input.Tags
	}
	chunks := buildChunks(scope, updated.ID, drafts, now)

	if err := s.docs.ReplaceContent(ctx, scope, &updated, chunks); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	embedState := s.embedChunks(ctx, scope, chunks)
	if err := s.docs.SetEmbedState(ctx, scope, updated.ID, embedState, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Warn("failed to update embed state", zap.Error(err))
	}

	return &IngestResult{
		DocumentID: updated.ID,
		Title:      updated.Title,
		ChunkCount: len(chunks),
		EmbedState: embedState,
		Version:    updated.Version,
	}, nil
}

// embedChunks requests an embedding for every chunk through the shared
// cache, a bounded number at a time. Failures are logged and flagged via the
// returned state, never fatal: a chunk without a vector stays lexically
// searchable until the sweep retries it.
func (s *IngestService) embedChunks(ctx context.Context, scope tenant.Scope, chunks []*model.Chunk) string {
	if len(chunks) == 0 {
		return model.EmbedStateFull
	}
	if s.embedder == nil {
		return model.EmbedStatePartial
	}
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", scope.TenantID()))

	var failed atomic.Int32
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.embedConcurrency)
	for _, chunk := range chunks {
		group.Go(func() error {
			if err := s.embedChunk(groupCtx, scope, chunk); err != nil {
				failed.Add(1)
				logger.Warn("chunk embedding failed, flagged for retry",
					zap.String("chunk_id", chunk.ID),
					zap.Int("ordinal", chunk.Ordinal),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = group.Wait()

	if failed.Load() > 0 {
		return model.EmbedStatePartial
	}
	return model.EmbedStateFull
}

func (s *IngestService) embedChunk(ctx context.Context, scope tenant.Scope, chunk *model.Chunk) error {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	values, err := s.cache.GetOrCompute(embedCtx, chunk.Content, s.embedder.Provider(), s.embedder.ModelName(), func(c context.Context) ([]float32, error) {
		return s.embedder.Embed(c, chunk.Content, embedTaskDocument)
	})
	if err != nil {
		return err
	}
	return s.embeddings.Upsert(ctx, scope, &model.ChunkEmbedding{
		ID:          uuid.NewString(),
		ChunkID:     chunk.ID,
		Provider:    s.embedder.Provider(),
		ModelName:   s.embedder.ModelName(),
		Dim:         len(values),
		ContentHash: s.cache.Digest(chunk.Content),
		Ctime:       time.Now().Unix(),
	})
}

func (s *IngestService) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, scope, docID)
}

func (s *IngestService) ListDocuments(ctx context.Context, limit, offset uint) ([]model.Document, error) {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.docs.List(ctx, scope, limit, offset)
}

func (s *IngestService) DeleteDocument(ctx context.Context, docID string) error {
	scope, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	return s.docs.Delete(ctx, scope, docID, time.Now().Unix())
}

func buildChunks(scope tenant.Scope, docID string, drafts []chunker.Draft, now int64) []*model.Chunk {
	chunks := make([]*model.Chunk, 0, len(drafts))
	for _, draft := range drafts {
		chunks = append(chunks, &model.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  docID,
			TenantID:    scope.TenantID(),
			Ordinal:     draft.Ordinal,
			Content:     draft.Content,
			TokenCount:  draft.TokenCount,
			ContentHash: hashutil.Digest(draft.Content),
			Ctime:       now,
		})
	}
	return chunks
}

func dedupResult(doc *model.Document) *IngestResult {
	return &IngestResult{
		DocumentID:   doc.ID,
		Title:        doc.Title,
		ChunkCount:   doc.ChunkCount,
		EmbedState:   doc.EmbedState,
		Version:      doc.Version,
		Deduplicated: true,
	}
}

func normalizeFileType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "md", "markdown":
		return "markdown"
	default:
		return "text"
	}
}
