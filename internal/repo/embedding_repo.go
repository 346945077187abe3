package repo

import (
	"context"
	"database/sql"

	"github.com/seekwell/seekwell/internal/model"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/tenant"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// Upsert records that a chunk is embedded under (provider, model). The
// insert goes through a SELECT on chunks so a chunk id outside the scope's
// tenant writes nothing. Re-embedding the same chunk under the same model
// overwrites the reference, it never duplicates the row.
func (r *EmbeddingRepo) Upsert(ctx context.Context, scope tenant.Scope, emb *model.ChunkEmbedding) error {
	if !scope.Valid() {
		return appErr.ErrNoTenant
	}
	const query = `
		INSERT INTO chunk_embeddings (id, chunk_id, provider, model_name, dim, content_hash, ctime)
		SELECT $1, c.id, $2, $3, $4, $5, $6
		FROM chunks c
		WHERE c.id = $7 AND c.tenant_id = $8
		ON CONFLICT (chunk_id, provider, model_name) DO UPDATE SET
			dim = EXCLUDED.dim,
			content_hash = EXCLUDED.content_hash,
			ctime = EXCLUDED.ctime
	`
	result, err := r.db.ExecContext(ctx, query,
		emb.ID, emb.Provider, emb.ModelName, emb.Dim, emb.ContentHash, emb.Ctime,
		emb.ChunkID, scope.TenantID(),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// GetByChunk returns the embedding reference for one chunk, if any.
func (r *EmbeddingRepo) GetByChunk(ctx context.Context, scope tenant.Scope, chunkID, provider, modelName string) (*model.ChunkEmbedding, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	const query = `
		SELECT ce.id, ce.chunk_id, ce.provider, ce.model_name, ce.dim, ce.content_hash, ce.ctime
		FROM chunk_embeddings ce
		JOIN chunks c ON c.id = ce.chunk_id
		WHERE ce.chunk_id = $1 AND ce.provider = $2 AND ce.model_name = $3 AND c.tenant_id = $4
	`
	row := r.db.QueryRowContext(ctx, query, chunkID, provider, modelName, scope.TenantID())
	var emb model.ChunkEmbedding
	if err := row.Scan(&emb.ID, &emb.ChunkID, &emb.Provider, &emb.ModelName, &emb.Dim, &emb.ContentHash, &emb.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &emb, nil
}
