package service

import (
	"context"

	"github.com/seekwell/seekwell/internal/model"
	"github.com/seekwell/seekwell/internal/repo"
	"github.com/seekwell/seekwell/internal/tenant"
)

// The services accept narrow store interfaces so the pipeline and scorer can
// be exercised against in-memory fakes. The repo types are the production
// implementations; all of them require a tenant scope.

type DocumentStore interface {
	CreateWithChunks(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error
	ReplaceContent(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error
	GetByID(ctx context.Context, scope tenant.Scope, docID string) (*model.Document, error)
	GetByContentHash(ctx context.Context, scope tenant.Scope, contentHash string) (*model.Document, error)
	List(ctx context.Context, scope tenant.Scope, limit, offset uint) ([]model.Document, error)
	SetEmbedState(ctx context.Context, scope tenant.Scope, docID, embedState string, mtime int64) error
	Delete(ctx context.Context, scope tenant.Scope, docID string, mtime int64) error
}

type ChunkStore interface {
	ListByDocument(ctx context.Context, scope tenant.Scope, docID string) ([]model.Chunk, error)
	ListPending(ctx context.Context, scope tenant.Scope, provider, modelName string, limit int) ([]model.Chunk, error)
	CountPendingByDocument(ctx context.Context, scope tenant.Scope, docID, provider, modelName string) (int, error)
	ListCandidates(ctx context.Context, scope tenant.Scope, provider, modelName string, filter repo.CandidateFilter) ([]model.CandidateChunk, error)
	ListPendingTenants(ctx context.Context, provider, modelName string, limit int) ([]string, error)
}

type EmbeddingStore interface {
	Upsert(ctx context.Context, scope tenant.Scope, emb *model.ChunkEmbedding) error
}

var (
	_ DocumentStore  = (*repo.DocumentRepo)(nil)
	_ ChunkStore     = (*repo.ChunkRepo)(nil)
	_ EmbeddingStore = (*repo.EmbeddingRepo)(nil)
)
