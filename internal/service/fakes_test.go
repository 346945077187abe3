package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/seekwell/seekwell/internal/model"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/repo"
	"github.com/seekwell/seekwell/internal/tenant"
)

// In-memory stores for exercising the services without a database. They
// enforce the same tenant scoping rules as the real repos.

type fakeDocStore struct {
	mu     sync.Mutex
	docs   map[string]*model.Document
	chunks map[string][]*model.Chunk
	// conflictOnce makes the next CreateWithChunks behave as if a concurrent
	// writer won the unique-index race: the row exists but the call errors.
	conflictOnce bool
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:   make(map[string]*model.Document),
		chunks: make(map[string][]*model.Chunk),
	}
}

func (f *fakeDocStore) CreateWithChunks(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.docs {
		if existing.TenantID == scope.TenantID() &&
			existing.ContentHash == doc.ContentHash &&
			existing.State == model.DocumentStateNormal {
			return fmt.Errorf("duplicate content: %w", appErr.ErrConflict)
		}
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	f.chunks[doc.ID] = append([]*model.Chunk(nil), chunks...)
	if f.conflictOnce {
		f.conflictOnce = false
		return fmt.Errorf("duplicate content: %w", appErr.ErrConflict)
	}
	return nil
}

func (f *fakeDocStore) ReplaceContent(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.docs[doc.ID]
	if !ok || existing.TenantID != scope.TenantID() || existing.State != model.DocumentStateNormal {
		return appErr.ErrNotFound
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	f.chunks[doc.ID] = append([]*model.Chunk(nil), chunks...)
	return nil
}

func (f *fakeDocStore) GetByID(ctx context.Context, scope tenant.Scope, docID string) (*model.Document, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.TenantID != scope.TenantID() || doc.State != model.DocumentStateNormal {
		return nil, appErr.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocStore) GetByContentHash(ctx context.Context, scope tenant.Scope, contentHash string) (*model.Document, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.TenantID == scope.TenantID() &&
			doc.ContentHash == contentHash &&
			doc.State == model.DocumentStateNormal {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeDocStore) List(ctx context.Context, scope tenant.Scope, limit, offset uint) ([]model.Document, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, doc := range f.docs {
		if doc.TenantID == scope.TenantID() && doc.State == model.DocumentStateNormal {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocStore) SetEmbedState(ctx context.Context, scope tenant.Scope, docID, embedState string, mtime int64) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.TenantID != scope.TenantID() {
		return appErr.ErrNotFound
	}
	doc.EmbedState = embedState
	doc.Mtime = mtime
	return nil
}

func (f *fakeDocStore) Delete(ctx context.Context, scope tenant.Scope, docID string, mtime int64) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.TenantID != scope.TenantID() || doc.State != model.DocumentStateNormal {
		return appErr.ErrNotFound
	}
	doc.State = model.DocumentStateDeleted
	doc.Mtime = mtime
	return nil
}

type fakeChunkStore struct {
	mu         sync.Mutex
	candidates map[string][]model.CandidateChunk
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{candidates: make(map[string][]model.CandidateChunk)}
}

func (f *fakeChunkStore) add(tenantID string, cands ...model.CandidateChunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates[tenantID] = append(f.candidates[tenantID], cands...)
}

func (f *fakeChunkStore) ListByDocument(ctx context.Context, scope tenant.Scope, docID string) ([]model.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) ListPending(ctx context.Context, scope tenant.Scope, provider, modelName string, limit int) ([]model.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) CountPendingByDocument(ctx context.Context, scope tenant.Scope, docID, provider, modelName string) (int, error) {
	return 0, nil
}

func (f *fakeChunkStore) ListPendingTenants(ctx context.Context, provider, modelName string, limit int) ([]string, error) {
	return nil, nil
}

func (f *fakeChunkStore) ListCandidates(ctx context.Context, scope tenant.Scope, provider, modelName string, filter repo.CandidateFilter) ([]model.CandidateChunk, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CandidateChunk
	for _, cand := range f.candidates[scope.TenantID()] {
		if filter.FileType != "" && cand.FileType != filter.FileType {
			continue
		}
		if filter.CreatedAfter > 0 && cand.Ctime < filter.CreatedAfter {
			continue
		}
		if filter.CreatedBefore > 0 && cand.Ctime > filter.CreatedBefore {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

type fakeEmbeddingStore struct {
	mu      sync.Mutex
	upserts []*model.ChunkEmbedding
}

func (f *fakeEmbeddingStore) Upsert(ctx context.Context, scope tenant.Scope, emb *model.ChunkEmbedding) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *emb
	f.upserts = append(f.upserts, &copied)
	return nil
}

func (f *fakeEmbeddingStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

// fakeEmbedder returns a fixed vector per exact text, or fails when no
// vector is registered and failMissing is set.
type fakeEmbedder struct {
	mu          sync.Mutex
	vectors     map[string][]float32
	fallback    []float32
	failMissing bool
	calls       int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{1, 0},
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if vec, ok := f.vectors[text]; ok {
		return append([]float32(nil), vec...), nil
	}
	if f.failMissing {
		return nil, fmt.Errorf("embedding backend unavailable: %w", appErr.ErrUnavailable)
	}
	return append([]float32(nil), f.fallback...), nil
}

func (f *fakeEmbedder) Provider() string {
	return "fake"
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed-001"
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
