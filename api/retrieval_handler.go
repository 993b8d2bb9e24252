package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/similarity"
)

// QueryRequest is the body of POST /v1/buckets/:name/query.
//
// TopK is the number of matches to return. Zero, or an omitted top_k, means
// the configured retrieval.top_k rather than an empty result; a request
// cannot ask for zero matches. Negative values are rejected.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// QueryResponse is the ranked result of a query.
type QueryResponse struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Metric   string             `json:"metric"`
	Matches  []similarity.Match `json:"matches"`
	Count    int                `json:"count"`
	Excluded int                `json:"excluded"`
}

// AskRequest is the body of POST /v1/buckets/:name/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries a generated answer and the chunks it was grounded in.
// Found is false when the bucket held nothing to answer from.
type AskResponse struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Found    bool               `json:"found"`
	Sources  []similarity.Match `json:"sources"`
}

// handleQuery ranks the bucket's chunks against the question.
// A top_k of 0 falls back to the configured retrieval.top_k.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}
	if req.TopK < 0 {
		return badRequest(c, "top_k must be a positive integer")
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.service.TopK()
	}

	bucket := c.Params("name")
	result, err := s.service.Query(c.Context(), bucket, req.Question, topK)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(QueryResponse{
		Bucket:   bucket,
		Question: req.Question,
		Metric:   string(result.Metric),
		Matches:  result.Matches,
		Count:    len(result.Matches),
		Excluded: result.Excluded,
	})
}

// handleAsk answers the question from the bucket's most similar chunks.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}

	bucket := c.Params("name")
	answer, err := s.service.Ask(c.Context(), bucket, req.Question)
	if err != nil {
		return s.writeError(c, err)
	}

	resp := AskResponse{
		Bucket:   bucket,
		Question: req.Question,
		Answer:   answer.Answer,
		Found:    answer.Found(),
		Sources:  answer.Sources,
	}
	if !resp.Found {
		resp.Answer = retrieval.NotFoundMessage(bucket)
	}

	return c.JSON(resp)
}
