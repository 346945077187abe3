package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/seekwell/seekwell/internal/model"
	"github.com/seekwell/seekwell/internal/pkg/dbutil"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/tenant"
)

// DocumentRepo only exposes tenant-scoped accessors. Every WHERE clause
// carries tenant_id and the live-state predicate; there is no unscoped
// method for ingestion or search code to reach.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

var documentColumns = []string{
	"id", "tenant_id", "title", "content", "lang", "source",
	"file_path", "file_type", "file_size", "content_hash",
	"chunk_count", "embed_state", "tags", "state", "version", "ctime", "mtime",
}

func scopedWhere(scope tenant.Scope, extra map[string]interface{}) (map[string]interface{}, error) {
	if !scope.Valid() {
		return nil, appErr.ErrNoTenant
	}
	where := map[string]interface{}{
		"tenant_id": scope.TenantID(),
		"state":     model.DocumentStateNormal,
	}
	for k, v := range extra {
		where[k] = v
	}
	return where, nil
}

// CreateWithChunks persists the document and all of its chunks in one
// transaction: either the fully chunked document becomes visible or nothing
// does. A unique-constraint violation on (tenant_id, content_hash) surfaces
// as ErrConflict so the caller can fall back to the dedup path.
func (r *DocumentRepo) CreateWithChunks(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error {
	if !scope.Valid() || doc.TenantID != scope.TenantID() {
		return appErr.ErrNoTenant
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertDocument(ctx, tx, doc); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	for _, chunk := range chunks {
		if err := insertChunk(ctx, tx, scope, chunk); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceContent rewrites a document's content, version and chunk set in one
// transaction. Old chunks are removed (embeddings cascade with them) and the
// new chunk set is inserted, so no partially re-chunked document is ever
// queryable.
func (r *DocumentRepo) ReplaceContent(ctx context.Context, scope tenant.Scope, doc *model.Document, chunks []*model.Chunk) error {
	if !scope.Valid() || doc.TenantID != scope.TenantID() {
		return appErr.ErrNoTenant
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	where := map[string]interface{}{
		"id":        doc.ID,
		"tenant_id": scope.TenantID(),
		"state":     model.DocumentStateNormal,
	}
	update := map[string]interface{}{
		"title":        doc.Title,
		"content":      doc.Content,
		"content_hash": doc.ContentHash,
		"chunk_count":  doc.ChunkCount,
		"embed_state":  doc.EmbedState,
		"tags":         pq.Array(doc.Tags),
		"version":      doc.Version,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := tx.ExecContext(ctx, sqlStr, args...)
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

	delSQL, delArgs := dbutil.Finalize("DELETE FROM chunks WHERE document_id = ? AND tenant_id = ?",
		[]interface{}{doc.ID, scope.TenantID()})
	if _, err := tx.ExecContext(ctx, delSQL, delArgs...); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := insertChunk(ctx, tx, scope, chunk); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertDocument(ctx context.Context, tx *sql.Tx, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"tenant_id":    doc.TenantID,
		"title":        doc.Title,
		"content":      doc.Content,
		"lang":         doc.Lang,
		"source":       doc.Source,
		"file_path":    doc.FilePath,
		"file_type":    doc.FileType,
		"file_size":    doc.FileSize,
		"content_hash": doc.ContentHash,
		"chunk_count":  doc.ChunkCount,
		"embed_state":  doc.EmbedState,
		"tags":         pq.Array(doc.Tags),
		"state":        doc.State,
		"version":      doc.Version,
		"ctime":        doc.Ctime,
		"mtime":        doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = tx.ExecContext(ctx, sqlStr, args...)
	return err
}

func insertChunk(ctx context.Context, tx *sql.Tx, scope tenant.Scope, chunk *model.Chunk) error {
	if chunk.TenantID != scope.TenantID() {
		return fmt.Errorf("chunk tenant mismatch: %w", appErr.ErrNoTenant)
	}
	data := map[string]interface{}{
		"id":           chunk.ID,
		"document_id":  chunk.DocumentID,
		"tenant_id":    chunk.TenantID,
		"ordinal":      chunk.Ordinal,
		"content":      chunk.Content,
		"token_count":  chunk.TokenCount,
		"content_hash": chunk.ContentHash,
		"ctime":        chunk.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chunks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = tx.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, scope tenant.Scope, docID string) (*model.Document, error) {
	where, err := scopedWhere(scope, map[string]interface{}{"id": docID})
	if err != nil {
		return nil, err
	}
	return r.selectOne(ctx, where)
}

// GetByContentHash serves the idempotent re-ingest path: same tenant, same
// bytes, same document.
func (r *DocumentRepo) GetByContentHash(ctx context.Context, scope tenant.Scope, contentHash string) (*model.Document, error) {
	where, err := scopedWhere(scope, map[string]interface{}{"content_hash": contentHash})
	if err != nil {
		return nil, err
	}
	return r.selectOne(ctx, where)
}

func (r *DocumentRepo) selectOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) List(ctx context.Context, scope tenant.Scope, limit, offset uint) ([]model.Document, error) {
	extra := map[string]interface{}{"_orderby": "mtime desc"}
	if limit > 0 {
		extra["_limit"] = []uint{offset, limit}
	}
	where, err := scopedWhere(scope, extra)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SetEmbedState records embedding progress after the best-effort embed pass
// or the background sweep.
func (r *DocumentRepo) SetEmbedState(ctx context.Context, scope tenant.Scope, docID, embedState string, mtime int64) error {
	where, err := scopedWhere(scope, map[string]interface{}{"id": docID})
	if err != nil {
		return err
	}
	update := map[string]interface{}{
		"embed_state": embedState,
		"mtime":       mtime,
	}
	return r.update(ctx, where, update)
}

// Delete soft-deletes: the row is retained for audit, the state flag takes
// it out of every scoped read.
func (r *DocumentRepo) Delete(ctx context.Context, scope tenant.Scope, docID string, mtime int64) error {
	where, err := scopedWhere(scope, map[string]interface{}{"id": docID})
	if err != nil {
		return err
	}
	update := map[string]interface{}{
		"state": model.DocumentStateDeleted,
		"mtime": mtime,
	}
	return r.update(ctx, where, update)
}

func (r *DocumentRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	if err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Title, &doc.Content, &doc.Lang, &doc.Source,
		&doc.FilePath, &doc.FileType, &doc.FileSize, &doc.ContentHash,
		&doc.ChunkCount, &doc.EmbedState, pq.Array(&doc.Tags), &doc.State,
		&doc.Version, &doc.Ctime, &doc.Mtime,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}
