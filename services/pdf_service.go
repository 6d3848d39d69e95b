package services

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"multi-industry-rag/internal/logger"
)

// PageText is the extracted text of one PDF page.
type PageText struct {
	Page int
	Text string
}

// PageExtractor produces an ordered sequence of page-level text segments
// from a PDF file on disk.
type PageExtractor interface {
	ExtractPages(path string) ([]PageText, error)
}

// PDFExtractor extracts text page-by-page using the native Go PDF reader.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns one PageText per parsable, non-blank page, in page
// order. A PDF from which no page yields text is an extraction failure.
func (e *PDFExtractor) ExtractPages(path string) ([]PageText, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var pages []PageText
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from page", "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, PageText{Page: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from any of %d pages", numPages)
	}

	return pages, nil
}
