package textproc

import "github.com/kirillkom/raggae/internal/core/domain"

const (
	minParagraphsForParagraphStrategy = 3
	minAverageParagraphLength         = 80
)

type Selector struct{}

func NewSelector() *Selector {
	return &Selector{}
}

// Select never returns semantic; that strategy is opt-in per project.
func (s *Selector) Select(structure domain.TextStructure) domain.ChunkingStrategy {
	if structure.HasHeadings && structure.ParagraphCount >= 2 {
		return domain.ChunkingHeadingSection
	}
	if structure.ParagraphCount >= minParagraphsForParagraphStrategy &&
		structure.AverageParagraphLength >= minAverageParagraphLength {
		return domain.ChunkingParagraph
	}
	return domain.ChunkingFixedWindow
}
