package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/seekwell/seekwell/internal/model"
	"github.com/seekwell/seekwell/internal/pkg/dbutil"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/tenant"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

var chunkColumns = []string{
	"id", "document_id", "tenant_id", "ordinal", "content",
	"token_count", "content_hash", "ctime",
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, scope tenant.Scope, docID string) ([]model.Chunk, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	where := map[string]interface{}{
		"tenant_id":   scope.TenantID(),
		"document_id": docID,
		"_orderby":    "ordinal asc",
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.TenantID, &chunk.Ordinal,
			&chunk.Content, &chunk.TokenCount, &chunk.ContentHash, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ListPending returns chunks of live documents that have no embedding under
// the given (provider, model) yet. The background sweep feeds on this.
func (r *ChunkRepo) ListPending(ctx context.Context, scope tenant.Scope, provider, modelName string, limit int) ([]model.Chunk, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	const query = `
		SELECT c.id, c.document_id, c.tenant_id, c.ordinal, c.content, c.token_count, c.content_hash, c.ctime
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		LEFT JOIN chunk_embeddings ce ON ce.chunk_id = c.id AND ce.provider = $1 AND ce.model_name = $2
		WHERE c.tenant_id = $3 AND d.state = $4 AND ce.id IS NULL
		ORDER BY c.ctime ASC, c.ordinal ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, query, provider, modelName, scope.TenantID(), model.DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.TenantID, &chunk.Ordinal,
			&chunk.Content, &chunk.TokenCount, &chunk.ContentHash, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// CountPendingByDocument tells the sweep whether a document can move from
// partial to full.
func (r *ChunkRepo) CountPendingByDocument(ctx context.Context, scope tenant.Scope, docID, provider, modelName string) (int, error) {
	if !scope.Valid() {
		return 0, appErr.ErrNoTenant
	}
	const query = `
		SELECT COUNT(1)
		FROM chunks c
		LEFT JOIN chunk_embeddings ce ON ce.chunk_id = c.id AND ce.provider = $1 AND ce.model_name = $2
		WHERE c.tenant_id = $3 AND c.document_id = $4 AND ce.id IS NULL
	`
	row := r.db.QueryRowContext(ctx, query, provider, modelName, scope.TenantID(), docID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CandidateFilter narrows the scorer's candidate set. Zero values mean "no
// filter".
type CandidateFilter struct {
	FileType      string
	CreatedAfter  int64
	CreatedBefore int64
}

// ListCandidates returns the tenant's scorable chunks joined with document
// metadata and, when one exists, the vector stored for (provider, model).
// Vectors are resolved through the chunk's cache reference.
func (r *ChunkRepo) ListCandidates(ctx context.Context, scope tenant.Scope, provider, modelName string, filter CandidateFilter) ([]model.CandidateChunk, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	query := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.token_count, c.ctime,
		       d.title, d.file_type, e.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		LEFT JOIN chunk_embeddings ce ON ce.chunk_id = c.id AND ce.provider = $1 AND ce.model_name = $2
		LEFT JOIN embedding_cache e ON e.provider = ce.provider AND e.model_name = ce.model_name AND e.content_hash = ce.content_hash
		WHERE d.tenant_id = $3 AND d.state = $4
	`
	args := []interface{}{provider, modelName, scope.TenantID(), model.DocumentStateNormal}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		query += " AND d.file_type = $" + strconv.Itoa(len(args))
	}
	if filter.CreatedAfter > 0 {
		args = append(args, filter.CreatedAfter)
		query += " AND d.ctime >= $" + strconv.Itoa(len(args))
	}
	if filter.CreatedBefore > 0 {
		args = append(args, filter.CreatedBefore)
		query += " AND d.ctime <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY c.ctime DESC, c.ordinal ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates := make([]model.CandidateChunk, 0)
	for rows.Next() {
		var item model.CandidateChunk
		var raw []byte
		if err := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Ordinal, &item.Content,
			&item.TokenCount, &item.Ctime, &item.Title, &item.FileType, &raw); err != nil {
			return nil, err
		}
		if raw != nil {
			var vec pgvector.Vector
			if err := vec.Scan(raw); err != nil {
				return nil, err
			}
			item.Embedding = vec.Slice()
		}
		candidates = append(candidates, item)
	}
	return candidates, rows.Err()
}

// ListPendingTenants is maintenance-only: it returns tenant ids (no row
// data) so the sweep can build an explicit system scope per tenant before
// touching any rows.
func (r *ChunkRepo) ListPendingTenants(ctx context.Context, provider, modelName string, limit int) ([]string, error) {
	const query = `
		SELECT DISTINCT c.tenant_id
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		LEFT JOIN chunk_embeddings ce ON ce.chunk_id = c.id AND ce.provider = $1 AND ce.model_name = $2
		WHERE d.state = $3 AND ce.id IS NULL
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, provider, modelName, model.DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tenants := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}
