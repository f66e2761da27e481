package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// Extractor decodes uploaded files into normalized text. PDF output carries
// [[PAGE:n]] markers on their own line before each page.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, fileName string, content []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := Extension(fileName)
	operation := "extract " + ext
	text, err := e.decode(ext, content)
	if err != nil {
		return "", domain.WrapError(domain.ErrDocumentExtraction, operation, err)
	}

	text = normalizeNewlines(text)
	if text == "" {
		return "", domain.WrapError(
			domain.ErrDocumentExtraction,
			operation,
			fmt.Errorf("empty extracted text: %s (%s)", fileName, contentType),
		)
	}
	return text, nil
}

func (e *Extractor) decode(ext string, content []byte) (string, error) {
	switch ext {
	case "txt", "md":
		return decodePlainText(content), nil
	case "pdf":
		return extractPDF(content)
	case "docx":
		return extractDOCX(content)
	case "xlsx":
		return extractXLSX(content)
	case "html", "htm":
		return extractHTML(content)
	case "doc":
		return "", errors.New("legacy .doc format is not supported, convert to .docx")
	case "":
		return "", errors.New("file has no extension")
	default:
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}
}

func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
