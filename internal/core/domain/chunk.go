package domain

import "time"

type ChunkLevel string

const (
	ChunkLevelFlat   ChunkLevel = "flat"
	ChunkLevelParent ChunkLevel = "parent"
	ChunkLevelChild  ChunkLevel = "child"
)

const (
	MetadataVersion = 1

	ChunkerBackendNative = "native"

	MetaVersion            = "metadata_version"
	MetaProcessingStrategy = "processing_strategy"
	MetaSourceType         = "source_type"
	MetaChunkerBackend     = "chunker_backend"
	MetaPages              = "pages"
	MetaPageStart          = "page_start"
	MetaPageEnd            = "page_end"
)

type DocumentChunk struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	ChunkIndex    int            `json:"chunk_index"`
	Content       string         `json:"content"`
	Embedding     []float32      `json:"-"`
	Metadata      map[string]any `json:"metadata_json"`
	Level         ChunkLevel     `json:"chunk_level"`
	ParentChunkID string         `json:"parent_chunk_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// BaseChunkMetadata is the metadata every persisted chunk carries.
func BaseChunkMetadata(strategy ChunkingStrategy) map[string]any {
	return map[string]any{
		MetaVersion:            MetadataVersion,
		MetaProcessingStrategy: string(strategy),
		MetaSourceType:         string(strategy),
		MetaChunkerBackend:     ChunkerBackendNative,
	}
}
