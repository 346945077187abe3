package model

// EmbeddingCacheEntry maps (provider, model, content hash) to a vector.
// Entries are shared across tenants: the hash fully determines the vector
// for a fixed provider/model and carries no tenant-identifying content.
type EmbeddingCacheEntry struct {
	Provider    string    `json:"provider"`
	ModelName   string    `json:"model_name"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
