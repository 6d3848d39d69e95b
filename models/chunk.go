package models

// DocumentChunk is one unit of extracted document text, one per PDF page.
// Chunks are immutable once stored; there is no update or delete operation.
type DocumentChunk struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Industry string `json:"industry"`
	Page     int    `json:"page"`
	Source   string `json:"source"`
}

// ScoredChunk is a search hit with its cosine similarity to the query vector.
type ScoredChunk struct {
	DocumentChunk
	Score float64 `json:"score"`
}

// IngestResponse is the success payload of POST /ingest.
type IngestResponse struct {
	Message  string `json:"message"`
	Pages    int    `json:"pages"`
	Industry string `json:"industry"`
}

// AskResponse is the success payload of POST /ask.
type AskResponse struct {
	Answer       string `json:"answer"`
	IndustryUsed string `json:"industry_used"`
	SourcesFound int    `json:"sources_found"`
}
