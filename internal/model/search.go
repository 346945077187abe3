package model

// Highlight is a (start, length) byte span into a search hit snippet.
type Highlight struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// SearchHit is a transient ranked result, never persisted.
type SearchHit struct {
	DocumentID string      `json:"document_id"`
	ChunkID    string      `json:"chunk_id"`
	Title      string      `json:"title"`
	Snippet    string      `json:"snippet"`
	Highlights []Highlight `json:"highlights"`
	Ordinal    int         `json:"ordinal"`
	Score      float64     `json:"score"`
}

// CandidateChunk is the scorer's working row: a tenant-scoped chunk joined
// with its document metadata and, when present, its vector.
type CandidateChunk struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Content    string
	TokenCount int
	Ctime      int64
	Title      string
	FileType   string
	Embedding  []float32
}
