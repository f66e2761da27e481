package domain

import (
	"fmt"
	"strings"
)

type ChunkingStrategy string

const (
	ChunkingAuto           ChunkingStrategy = "auto"
	ChunkingFixedWindow    ChunkingStrategy = "fixed_window"
	ChunkingParagraph      ChunkingStrategy = "paragraph"
	ChunkingHeadingSection ChunkingStrategy = "heading_section"
	ChunkingSemantic       ChunkingStrategy = "semantic"
)

func ParseChunkingStrategy(raw string) (ChunkingStrategy, error) {
	s := ChunkingStrategy(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return ChunkingAuto, nil
	case ChunkingAuto, ChunkingFixedWindow, ChunkingParagraph, ChunkingHeadingSection, ChunkingSemantic:
		return s, nil
	default:
		return "", WrapError(ErrInvalidChunkingStrategy, "parse chunking strategy", fmt.Errorf("unknown value %q", raw))
	}
}

type RetrievalStrategy string

const (
	RetrievalAuto     RetrievalStrategy = "auto"
	RetrievalVector   RetrievalStrategy = "vector"
	RetrievalFulltext RetrievalStrategy = "fulltext"
	RetrievalHybrid   RetrievalStrategy = "hybrid"
)

func ParseRetrievalStrategy(raw string) (RetrievalStrategy, error) {
	s := RetrievalStrategy(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case RetrievalAuto, RetrievalVector, RetrievalFulltext, RetrievalHybrid:
		return s, nil
	default:
		return "", WrapError(ErrInvalidRetrievalStrategy, "parse retrieval strategy", fmt.Errorf("unknown value %q", raw))
	}
}

type ProcessingMode string

const (
	ProcessingSync  ProcessingMode = "sync"
	ProcessingAsync ProcessingMode = "async"
	ProcessingOff   ProcessingMode = "off"
)

func ParseProcessingMode(raw string) ProcessingMode {
	switch ProcessingMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ProcessingAsync:
		return ProcessingAsync
	case ProcessingOff:
		return ProcessingOff
	default:
		return ProcessingSync
	}
}

// TextStructure summarizes the layout of sanitized text for strategy selection.
type TextStructure struct {
	HasHeadings            bool
	ParagraphCount         int
	AverageParagraphLength float64
}

// ParentPartSeparator joins the base chunks packed into one parent.
const ParentPartSeparator = "\n\n"

// ParentChunk groups packed base chunks with the overlapping child windows cut from them.
// ChildSpans holds rune offsets [start,end) of each child inside Text and
// Parts holds the indexes of the base chunks packed into Text.
type ParentChunk struct {
	Text       string
	Children   []string
	ChildSpans [][2]int
	Parts      []int
}
