// Package ingest turns documents into embedded chunks and writes them into
// buckets.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/papercomputeco/stacks/pkg/retrieval"
)

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Service   *retrieval.Service
	Extractor *DocumentExtractor
	Chunker   Chunker
	Pool      *Pool
	Logger    *slog.Logger
}

// Pipeline runs extract -> split -> embed -> ingest.
type Pipeline struct {
	service   *retrieval.Service
	extractor *DocumentExtractor
	chunker   Chunker
	pool      *Pool
	logger    *slog.Logger
}

// FileResult is the outcome of ingesting one file in a directory run.
type FileResult struct {
	Path    string                  `json:"path"`
	Bucket  string                  `json:"bucket"`
	Result  *retrieval.IngestResult `json:"result,omitempty"`
	Skipped bool                    `json:"skipped"`
	Err     error                   `json:"-"`
}

// NewPipeline creates a Pipeline.
func NewPipeline(c PipelineConfig) (*Pipeline, error) {
	if c.Service == nil {
		return nil, errors.New("retrieval service is required")
	}
	if c.Pool == nil {
		return nil, errors.New("embedding pool is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	extractor := c.Extractor
	if extractor == nil {
		extractor = NewDocumentExtractor()
	}

	chunker := c.Chunker
	if chunker == nil {
		splitter, err := NewCharacterSplitter(DefaultChunkSize, DefaultChunkOverlap)
		if err != nil {
			return nil, err
		}
		chunker = splitter
	}

	return &Pipeline{
		service:   c.Service,
		extractor: extractor,
		chunker:   chunker,
		pool:      c.Pool,
		logger:    c.Logger,
	}, nil
}

// BucketName derives a bucket name from a document path: the lower-cased
// file name without its extension.
func BucketName(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// IngestFile extracts, splits and embeds the document at path and rebuilds
// the bucket from it.
func (p *Pipeline) IngestFile(ctx context.Context, bucket, path string, opts ...retrieval.IngestOption) (*retrieval.IngestResult, error) {
	text, err := p.extractor.ExtractText(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}

	opts = append([]retrieval.IngestOption{retrieval.WithDocument(path)}, opts...)
	return p.ingestText(ctx, bucket, path, text, opts)
}

// IngestBytes is IngestFile for an uploaded document. ext includes the
// leading dot.
func (p *Pipeline) IngestBytes(ctx context.Context, bucket, name string, content []byte, ext string, opts ...retrieval.IngestOption) (*retrieval.IngestResult, error) {
	text, err := p.extractor.ExtractBytes(ctx, content, ext)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", name, err)
	}

	opts = append([]retrieval.IngestOption{retrieval.WithDocument(name)}, opts...)
	return p.ingestText(ctx, bucket, name, text, opts)
}

// IngestTexts embeds pre-split chunks and writes them to the bucket.
func (p *Pipeline) IngestTexts(ctx context.Context, bucket string, texts []string, opts ...retrieval.IngestOption) (*retrieval.IngestResult, error) {
	entries, err := p.pool.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	return p.service.Ingest(ctx, bucket, entries, opts...)
}

func (p *Pipeline) ingestText(ctx context.Context, bucket, name, text string, opts []retrieval.IngestOption) (*retrieval.IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	p.logger.Debug("document split",
		"document", name,
		"bucket", bucket,
		"chunks", len(chunks),
	)

	return p.IngestTexts(ctx, bucket, chunks, opts...)
}

// IngestDir ingests every PDF in dir into its own bucket, named by
// BucketName. Empty or unreadable documents are skipped with a warning.
// Embedding and storage failures stop the run.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, opts ...retrieval.IngestOption) ([]FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		bucket := BucketName(path)
		res, err := p.IngestFile(ctx, bucket, path, opts...)
		if err != nil {
			if skippable(err) {
				p.logger.Warn("skipping document",
					"path", path,
					"bucket", bucket,
					"error", err,
				)
				results = append(results, FileResult{Path: path, Bucket: bucket, Skipped: true, Err: err})
				continue
			}
			return results, err
		}

		results = append(results, FileResult{Path: path, Bucket: bucket, Result: res})
	}

	return results, nil
}

// skippable reports whether a document failure should not stop a directory
// run.
func skippable(err error) bool {
	return errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrUnreadableDocument) ||
		errors.Is(err, ErrUnsupportedFormat)
}
