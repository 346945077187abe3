package model

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

// Embedding progress of a document. A document never fails terminally after
// chunking: missing embeddings keep it in partial until the retry sweep
// catches up.
const (
	EmbedStateChunked = "chunked"
	EmbedStatePartial = "partial"
	EmbedStateFull    = "full"
)

type Document struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Lang        string   `json:"lang"`
	Source      string   `json:"source"`
	FilePath    string   `json:"file_path"`
	FileType    string   `json:"file_type"`
	FileSize    int64    `json:"file_size"`
	ContentHash string   `json:"content_hash"`
	ChunkCount  int      `json:"chunk_count"`
	EmbedState  string   `json:"embed_state"`
	Tags        []string `json:"tags"`
	State       int      `json:"state"`
	Version     int      `json:"version"`
	Ctime       int64    `json:"ctime"`
	Mtime       int64    `json:"mtime"`
}
