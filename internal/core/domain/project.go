package domain

import (
	"fmt"
	"time"
)

type ReindexStatus string

const (
	ReindexIdle       ReindexStatus = "idle"
	ReindexInProgress ReindexStatus = "in_progress"
	ReindexCompleted  ReindexStatus = "completed"
	ReindexFailed     ReindexStatus = "failed"
)

type ProjectSettings struct {
	ChunkingStrategy            ChunkingStrategy  `json:"chunking_strategy"`
	ParentChildChunking         bool              `json:"parent_child_chunking"`
	RetrievalStrategy           RetrievalStrategy `json:"retrieval_strategy"`
	RetrievalTopK               int               `json:"retrieval_top_k"`
	RetrievalMinScore           float64           `json:"retrieval_min_score"`
	RerankingEnabled            bool              `json:"reranking_enabled"`
	RerankerCandidateMultiplier int               `json:"reranker_candidate_multiplier"`
	ChatHistoryWindowSize       int               `json:"chat_history_window_size"`
	ChatHistoryMaxChars         int               `json:"chat_history_max_chars"`
}

func DefaultProjectSettings() ProjectSettings {
	return ProjectSettings{
		ChunkingStrategy:            ChunkingAuto,
		RetrievalStrategy:           RetrievalHybrid,
		RetrievalTopK:               8,
		RetrievalMinScore:           0,
		RerankerCandidateMultiplier: 3,
		ChatHistoryWindowSize:       8,
		ChatHistoryMaxChars:         4000,
	}
}

// Validate checks the configuration ranges enforced on every project mutation.
func (s ProjectSettings) Validate() error {
	if _, err := ParseChunkingStrategy(string(s.ChunkingStrategy)); err != nil {
		return err
	}
	if _, err := ParseRetrievalStrategy(string(s.RetrievalStrategy)); err != nil {
		return err
	}
	if s.RetrievalTopK < 1 {
		return WrapError(ErrInvalidTopK, "validate project settings", fmt.Errorf("top_k=%d must be >= 1", s.RetrievalTopK))
	}
	if s.RetrievalMinScore < 0 || s.RetrievalMinScore > 1 {
		return WrapError(ErrInvalidMinScore, "validate project settings", fmt.Errorf("min_score=%v must be within [0,1]", s.RetrievalMinScore))
	}
	if s.RerankerCandidateMultiplier < 1 {
		return WrapError(
			ErrInvalidRerankerCandidateMultiple,
			"validate project settings",
			fmt.Errorf("candidate_multiplier=%d must be >= 1", s.RerankerCandidateMultiplier),
		)
	}
	if s.ChatHistoryWindowSize < 0 || s.ChatHistoryMaxChars < 0 {
		return WrapError(ErrInvalidInput, "validate project settings", fmt.Errorf("chat history sizes must be >= 0"))
	}
	return nil
}

type Project struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Settings       ProjectSettings `json:"settings"`

	ReindexStatus   ReindexStatus `json:"reindex_status"`
	ReindexProgress int           `json:"reindex_progress"`
	ReindexTotal    int           `json:"reindex_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Project) OwnedBy(userID string) bool {
	return p != nil && userID != "" && p.UserID == userID
}

// StartReindex moves the project into in_progress for total documents.
// A project without documents goes straight to completed.
func (p *Project) StartReindex(total int) error {
	if p.ReindexStatus == ReindexInProgress {
		return WrapError(ErrProjectReindexInProgress, "start reindex", fmt.Errorf("project=%s", p.ID))
	}
	if total < 0 {
		return WrapError(ErrInvalidInput, "start reindex", fmt.Errorf("negative total %d", total))
	}
	p.ReindexTotal = total
	p.ReindexProgress = 0
	if total == 0 {
		p.ReindexStatus = ReindexCompleted
		return nil
	}
	p.ReindexStatus = ReindexInProgress
	return nil
}

func (p *Project) AdvanceReindex() {
	if p.ReindexProgress < p.ReindexTotal {
		p.ReindexProgress++
	}
}

// FinishReindex closes a run; failed is recorded only when every document failed.
func (p *Project) FinishReindex(indexed int) {
	p.ReindexProgress = p.ReindexTotal
	if p.ReindexTotal > 0 && indexed == 0 {
		p.ReindexStatus = ReindexFailed
		return
	}
	p.ReindexStatus = ReindexCompleted
}

// ResetReindex clears a run left in_progress by a cancelled process.
func (p *Project) ResetReindex() {
	p.ReindexStatus = ReindexIdle
	p.ReindexProgress = 0
	p.ReindexTotal = 0
}

// ProjectInput carries the mutable project fields. A nil Settings keeps the
// current configuration (or the defaults on create).
type ProjectInput struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	OrganizationID string           `json:"organization_id"`
	Settings       *ProjectSettings `json:"settings,omitempty"`
}
