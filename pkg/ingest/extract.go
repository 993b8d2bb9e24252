package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for files the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrUnreadableDocument is returned when a document cannot be read or
	// parsed.
	ErrUnreadableDocument = errors.New("unreadable document")
)

// Extractor turns a document on disk into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// DocumentExtractor extracts text from PDF and plain text documents.
type DocumentExtractor struct{}

// NewDocumentExtractor returns a new DocumentExtractor.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// ExtractText reads the file at path and extracts its text by extension.
func (e *DocumentExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}
	return e.ExtractBytes(ctx, content, filepath.Ext(path))
}

// ExtractBytes extracts text from content. ext includes the leading dot.
func (e *DocumentExtractor) ExtractBytes(ctx context.Context, content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(ctx, content)
	case ".txt", ".md", ".markdown", ".rst", "":
		return extractPlain(content), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Supports reports whether the extension can be extracted.
func (e *DocumentExtractor) Supports(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".md", ".markdown", ".rst":
		return true
	default:
		return false
	}
}

// extractPDF concatenates the plain text of every page.
func extractPDF(ctx context.Context, content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %w", ErrUnreadableDocument, err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: extract page %d: %w", ErrUnreadableDocument, i, err)
		}
		buf.WriteString(text)
	}

	return buf.String(), nil
}

func extractPlain(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�")
	}
	return string(content)
}
