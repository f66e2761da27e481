package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusError      DocumentStatus = "error"
)

var allowedTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusIndexed, StatusError},
	StatusIndexed:    {StatusProcessing},
	StatusError:      {StatusProcessing},
}

type Document struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
	StorageKey  string `json:"storage_key"`

	Status             DocumentStatus   `json:"status"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	LastIndexedAt      *time.Time       `json:"last_indexed_at,omitempty"`
	ProcessingStrategy ChunkingStrategy `json:"processing_strategy,omitempty"`

	Title        string     `json:"title,omitempty"`
	Authors      []string   `json:"authors,omitempty"`
	DocumentDate *time.Time `json:"document_date,omitempty"`
	Language     string     `json:"language,omitempty"`
	Keywords     []string   `json:"keywords,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func CanTransition(from, to DocumentStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo applies a status change. Leaving error clears the message and
// entering indexed stamps LastIndexedAt.
func (d *Document) TransitionTo(to DocumentStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return WrapError(
			ErrInvalidDocumentStatusTransition,
			"document status transition",
			fmt.Errorf("document=%s %s->%s", d.ID, d.Status, to),
		)
	}
	if d.Status == StatusError {
		d.ErrorMessage = ""
	}
	d.Status = to
	if to == StatusIndexed {
		indexedAt := now.UTC()
		d.LastIndexedAt = &indexedAt
	}
	d.UpdatedAt = now.UTC()
	return nil
}

func (d *Document) MarkProcessing(now time.Time) error {
	return d.TransitionTo(StatusProcessing, now)
}

func (d *Document) MarkIndexed(now time.Time) error {
	return d.TransitionTo(StatusIndexed, now)
}

func (d *Document) MarkError(message string, now time.Time) error {
	if err := d.TransitionTo(StatusError, now); err != nil {
		return err
	}
	d.ErrorMessage = message
	return nil
}

// FileMetadata is what a format-specific metadata reader can tell about a file.
type FileMetadata struct {
	Title        string
	Authors      []string
	DocumentDate *time.Time
}
