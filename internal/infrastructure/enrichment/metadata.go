package enrichment

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/infrastructure/extractor"
)

var (
	markdownTitle  = regexp.MustCompile(`(?m)^#\s+(\S.*)$`)
	authorSplitter = regexp.MustCompile(`\s*(?:;|,|\band\b)\s*`)
)

// FileMetadataExtractor reads title, authors and date from the file format
// itself: the PDF Info dictionary, DOCX core properties, the HTML title or
// the first markdown heading.
type FileMetadataExtractor struct{}

func NewFileMetadataExtractor() *FileMetadataExtractor {
	return &FileMetadataExtractor{}
}

func (e *FileMetadataExtractor) ExtractMetadata(ctx context.Context, fileName string, content []byte) (domain.FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileMetadata{}, err
	}
	switch extractor.Extension(fileName) {
	case "pdf":
		return pdfMetadata(content)
	case "docx":
		return docxMetadata(content)
	case "html", "htm":
		return htmlMetadata(content)
	case "md", "txt":
		return markdownMetadata(content), nil
	default:
		return domain.FileMetadata{}, nil
	}
}

func pdfMetadata(content []byte) (meta domain.FileMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf info: %v", r)
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("open pdf: %w", err)
	}

	trailer := pdfReader.Trailer()
	if trailer.IsNull() {
		return domain.FileMetadata{}, nil
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return domain.FileMetadata{}, nil
	}

	if title := info.Key("Title"); !title.IsNull() {
		meta.Title = strings.TrimSpace(title.Text())
	}
	if author := info.Key("Author"); !author.IsNull() {
		meta.Authors = splitAuthors(author.Text())
	}
	if created := info.Key("CreationDate"); !created.IsNull() {
		if ts, ok := ParsePDFDate(created.Text()); ok {
			meta.DocumentDate = &ts
		}
	}
	return meta, nil
}

// ParsePDFDate parses the "D:YYYYMMDDHHmmSS" date format, ignoring the zone suffix.
func ParsePDFDate(raw string) (time.Time, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "D:")
	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	layouts := map[int]string{14: "20060102150405", 12: "200601021504", 8: "20060102", 6: "200601", 4: "2006"}
	for _, size := range []int{14, 12, 8, 6, 4} {
		if digits < size {
			continue
		}
		if ts, err := time.Parse(layouts[size], raw[:size]); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

type docxCoreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}

func docxMetadata(content []byte) (domain.FileMetadata, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("open docx archive: %w", err)
	}
	raw, err := extractor.ReadZipPart(archive, "docProps/core.xml")
	if err != nil {
		return domain.FileMetadata{}, err
	}

	var core docxCoreProperties
	if err := xml.Unmarshal(raw, &core); err != nil {
		return domain.FileMetadata{}, fmt.Errorf("parse core properties: %w", err)
	}

	meta := domain.FileMetadata{
		Title:   strings.TrimSpace(core.Title),
		Authors: splitAuthors(core.Creator),
	}
	if created := strings.TrimSpace(core.Created); created != "" {
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			ts = ts.UTC()
			meta.DocumentDate = &ts
		}
	}
	return meta, nil
}

func htmlMetadata(content []byte) (domain.FileMetadata, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("parse html: %w", err)
	}

	var meta domain.FileMetadata
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" && n.FirstChild != nil {
					meta.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if attr(n, "name") == "author" {
					meta.Authors = splitAuthors(attr(n, "content"))
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func markdownMetadata(content []byte) domain.FileMetadata {
	match := markdownTitle.FindSubmatch(content)
	if match == nil {
		return domain.FileMetadata{}
	}
	return domain.FileMetadata{Title: strings.TrimSpace(string(match[1]))}
}

func splitAuthors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := authorSplitter.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
