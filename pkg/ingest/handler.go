package ingest

import (
	"context"

	"github.com/papercomputeco/stacks/pkg/retrieval"
)

// DirHandler keeps one bucket per document in sync with a watched directory.
// It satisfies watch.Handler.
type DirHandler struct {
	pipeline *Pipeline
	opts     []retrieval.IngestOption
}

// DirHandler returns a handler that rebuilds a document's bucket when the
// document changes and deletes the bucket when the document is removed.
func (p *Pipeline) DirHandler(opts ...retrieval.IngestOption) *DirHandler {
	return &DirHandler{pipeline: p, opts: opts}
}

// Changed re-ingests the document into the bucket named by BucketName.
func (h *DirHandler) Changed(ctx context.Context, path string) error {
	bucket := BucketName(path)
	res, err := h.pipeline.IngestFile(ctx, bucket, path, h.opts...)
	if err != nil {
		if skippable(err) {
			h.pipeline.logger.Warn("skipping document",
				"path", path,
				"bucket", bucket,
				"error", err,
			)
			return nil
		}
		return err
	}

	h.pipeline.logger.Info("document re-ingested",
		"path", path,
		"bucket", bucket,
		"chunks", res.Chunks,
	)
	return nil
}

// Removed deletes the document's bucket.
func (h *DirHandler) Removed(ctx context.Context, path string) error {
	return h.pipeline.service.DeleteBucket(ctx, BucketName(path), h.opts...)
}
