package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/retrieval"
)

// ChunkRepository stores chunks with their embedding in a pgvector column.
// Parents carry a NULL embedding and are only read back as parent context.
type ChunkRepository struct {
	db     *sql.DB
	engine *retrieval.Engine
}

func NewChunkRepository(db *sql.DB, engine *retrieval.Engine) *ChunkRepository {
	if engine == nil {
		engine = retrieval.NewEngine(retrieval.DefaultVectorWeight, retrieval.DefaultFulltextWeight)
	}
	return &ChunkRepository{db: db, engine: engine}
}

func (r *ChunkRepository) SaveMany(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		metadata := chunk.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		var parentID *string
		if chunk.ParentChunkID != "" {
			parentID = &chunk.ParentChunkID
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding, metadata, chunk_level, parent_chunk_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, toVector(chunk.Embedding),
			metadataJSON, string(chunk.Level), parentID, chunk.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepository) FindByDocumentID(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, chunk_index, content, embedding, metadata, chunk_level, parent_chunk_id, created_at
FROM document_chunks
WHERE document_id = $1
ORDER BY chunk_index
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentChunk, 0)
	for rows.Next() {
		var chunk domain.DocumentChunk
		var embedding *pgvector.Vector
		var metadataRaw []byte
		var level string
		var parentID sql.NullString
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Content,
			&embedding,
			&metadataRaw,
			&level,
			&parentID,
			&chunk.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if chunk.Metadata, err = decodeMetadata(metadataRaw); err != nil {
			return nil, err
		}
		chunk.Embedding = fromVector(embedding)
		chunk.Level = domain.ChunkLevel(level)
		chunk.ParentChunkID = parentID.String
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// Retrieve loads the project's retrievable chunks with their parent text and
// hands them to the retrieval engine for scoring, filtering and paging.
func (r *ChunkRepository) Retrieve(ctx context.Context, query domain.RetrievalQuery) ([]domain.RetrievedChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.document_id, d.file_name, c.chunk_index, c.content, c.embedding, c.metadata,
	c.chunk_level, c.parent_chunk_id, p.content
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
LEFT JOIN document_chunks p ON p.id = c.parent_chunk_id
WHERE d.project_id = $1 AND c.chunk_level <> $2
`, query.ProjectID, string(domain.ChunkLevelParent))
	if err != nil {
		return nil, fmt.Errorf("load retrieval candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]domain.RetrievedChunk, 0, 64)
	for rows.Next() {
		var candidate domain.RetrievedChunk
		var embedding *pgvector.Vector
		var metadataRaw []byte
		var level string
		var parentID, parentContent sql.NullString
		if err := rows.Scan(
			&candidate.ChunkID,
			&candidate.DocumentID,
			&candidate.DocumentFileName,
			&candidate.ChunkIndex,
			&candidate.Content,
			&embedding,
			&metadataRaw,
			&level,
			&parentID,
			&parentContent,
		); err != nil {
			return nil, fmt.Errorf("scan retrieval candidate: %w", err)
		}
		if candidate.Metadata, err = decodeMetadata(metadataRaw); err != nil {
			return nil, err
		}
		candidate.Embedding = fromVector(embedding)
		candidate.Level = domain.ChunkLevel(level)
		candidate.ParentChunkID = parentID.String
		candidate.ParentContent = parentContent.String
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retrieval candidates: %w", err)
	}

	ranked, _ := r.engine.Rank(query, candidates)
	return ranked, nil
}

func toVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func fromVector(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
	}
	return metadata, nil
}
