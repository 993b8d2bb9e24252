package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	codeBadRequest        = "bad_request"
	codeNotFound          = "not_found"
	codeConflict          = "conflict"
	codeDimensionMismatch = "dimension_mismatch"
	codeInvalidDocument   = "invalid_document"
	codeEmbedding         = "embedding_error"
	codeRetrieval         = "retrieval_error"
	codeGeneration        = "generation_error"
	codeUnavailable       = "unavailable"
	codeInternal          = "internal_error"
)

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg, Code: codeBadRequest})
}

// writeError maps domain errors onto HTTP statuses. Typed errors are checked
// before the sentinels they wrap.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	var genErr *retrieval.GenerationError

	switch {
	case errors.Is(err, chunkstore.ErrCollectionNotFound):
		return fiber.StatusNotFound, codeNotFound
	case errors.Is(err, chunkstore.ErrDuplicateCollection):
		return fiber.StatusConflict, codeConflict
	case errors.Is(err, vector.ErrDimensionMismatch):
		return fiber.StatusUnprocessableEntity, codeDimensionMismatch
	case errors.Is(err, retrieval.ErrNoGenerator):
		return fiber.StatusServiceUnavailable, codeUnavailable
	case errors.As(err, &genErr):
		return fiber.StatusBadGateway, codeGeneration
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrEmptyDocument),
		errors.Is(err, ingest.ErrUnreadableDocument):
		return fiber.StatusUnprocessableEntity, codeInvalidDocument
	case errors.Is(err, embeddings.ErrEmbedding):
		var retErr *retrieval.RetrievalError
		if errors.As(err, &retErr) {
			return fiber.StatusBadGateway, codeRetrieval
		}
		return fiber.StatusBadGateway, codeEmbedding
	default:
		return fiber.StatusInternalServerError, codeInternal
	}
}
