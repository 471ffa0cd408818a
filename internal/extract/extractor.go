// Package extract turns contract files into ordered, non-blank page texts.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/legaleagle/internal/models"
)

// SupportedExtensions lists the file extensions ExtractPages understands.
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md", ".rtf", ".odt", ".xlsx", ".pptx"}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Extractor extracts page text from contract files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the file at path and returns its pages in order.
// Blank pages are dropped; PageNumber keeps the physical position of the page, starting at 1.
func (e *Extractor) ExtractPages(path string) ([]models.PageText, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractPagesBytes(content, filepath.Ext(path))
}

// ExtractPagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]models.PageText, error) {
	var (
		pages []string
		err   error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		pages, err = extractPDF(content)
	case ".docx":
		pages, err = extractDOCX(content)
	case ".rtf", ".odt":
		pages, err = extractDocument(content)
	case ".xlsx":
		pages, err = extractExcel(content)
	case ".pptx":
		pages, err = extractPPTX(content)
	case ".txt", ".md":
		pages = extractPlain(content)
	default:
		return nil, fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return numberPages(pages), nil
}

// numberPages assigns 1-based page numbers by position and drops blank pages.
func numberPages(pages []string) []models.PageText {
	out := make([]models.PageText, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, models.PageText{Text: text, PageNumber: i + 1})
	}
	return out
}
