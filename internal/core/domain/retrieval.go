package domain

// RetrievalQuery is what a chunk store needs to rank project chunks.
type RetrievalQuery struct {
	ProjectID       string
	Text            string
	Embedding       []float32
	Limit           int
	Offset          int
	MinScore        float64
	Strategy        RetrievalStrategy
	MetadataFilters map[string]any
}

type RetrievedChunk struct {
	ChunkID          string         `json:"chunk_id"`
	DocumentID       string         `json:"document_id"`
	DocumentFileName string         `json:"document_file_name"`
	ChunkIndex       int            `json:"chunk_index"`
	Content          string         `json:"content"`
	Score            float64        `json:"score"`
	VectorScore      float64        `json:"vector_score"`
	FulltextScore    float64        `json:"fulltext_score"`
	Metadata         map[string]any `json:"metadata_json,omitempty"`
	Level            ChunkLevel     `json:"chunk_level"`
	ParentChunkID    string         `json:"parent_chunk_id,omitempty"`
	ParentContent    string         `json:"parent_content,omitempty"`
	Embedding        []float32      `json:"-"`
}

// Query is the inbound request for the project query path. A nil Limit
// means the project's retrieval_top_k.
type Query struct {
	ProjectID       string            `json:"project_id"`
	UserID          string            `json:"-"`
	Text            string            `json:"query"`
	Strategy        RetrievalStrategy `json:"strategy,omitempty"`
	MetadataFilters map[string]any    `json:"metadata_filters,omitempty"`
	MinScore        *float64          `json:"min_score,omitempty"`
	Limit           *int              `json:"limit,omitempty"`
	Offset          int               `json:"offset"`
}

type QueryResult struct {
	Chunks           []RetrievedChunk  `json:"chunks"`
	ResolvedStrategy RetrievalStrategy `json:"resolved_strategy"`
	Reranked         bool              `json:"reranked"`
}

type ReindexResult struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

const (
	UploadErrorProcessingFailed = "PROCESSING_FAILED"
	UploadErrorInvalidFile      = "INVALID_FILE"
)

// UploadResult reports the outcome for one uploaded file.
type UploadResult struct {
	FileName  string    `json:"file_name"`
	Document  *Document `json:"document,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// UploadFile is one file handed to the upload use case.
type UploadFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
