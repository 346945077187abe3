package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/seekwell/seekwell/internal/model"
)

// EmbeddingCacheRepo backs the shared embedding cache. Rows are keyed by
// (provider, model, content hash) and shared across tenants; the hash alone
// determines the vector and carries no tenant data, so no scope applies.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, provider, modelName, contentHash string) ([]float32, bool, error) {
	const query = `
		SELECT embedding
		FROM embedding_cache
		WHERE provider = $1 AND model_name = $2 AND content_hash = $3
	`
	row := r.db.QueryRowContext(ctx, query, provider, modelName, contentHash)
	var embedding pgvector.Vector
	if err := row.Scan(&embedding); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

// Put is append-only and idempotent: when a concurrent writer got there
// first the insert is a no-op, the stored vector is never rewritten.
func (r *EmbeddingCacheRepo) Put(ctx context.Context, entry *model.EmbeddingCacheEntry) error {
	const query = `
		INSERT INTO embedding_cache (provider, model_name, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, model_name, content_hash) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.Provider,
		entry.ModelName,
		entry.ContentHash,
		pgvector.NewVector(entry.Embedding),
		entry.Ctime,
	)
	return err
}

// DeleteBefore expires entries older than the retention cutoff.
func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM embedding_cache WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
