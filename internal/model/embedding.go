package model

// ChunkEmbedding records that a chunk has a vector under one
// (provider, model) pair. The vector payload itself lives in the shared
// embedding cache; ContentHash is the reference into it.
type ChunkEmbedding struct {
	ID          string `json:"id"`
	ChunkID     string `json:"chunk_id"`
	Provider    string `json:"provider"`
	ModelName   string `json:"model_name"`
	Dim         int    `json:"dim"`
	ContentHash string `json:"content_hash"`
	Ctime       int64  `json:"ctime"`
}
