package model

type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	TenantID    string `json:"tenant_id"`
	Ordinal     int    `json:"ordinal"`
	Content     string `json:"content"`
	TokenCount  int    `json:"token_count"`
	ContentHash string `json:"content_hash"`
	Ctime       int64  `json:"ctime"`
}
