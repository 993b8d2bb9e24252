package api

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/retrieval"
)

// BucketResponse describes a single bucket.
type BucketResponse struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Chunks     int    `json:"chunks"`
}

// ListBucketsResponse is the body of GET /v1/buckets.
type ListBucketsResponse struct {
	Buckets []BucketResponse `json:"buckets"`
	Count   int              `json:"count"`
}

// CreateBucketRequest is the body of POST /v1/buckets.
type CreateBucketRequest struct {
	Name string `json:"name"`
}

// IngestChunksRequest is the body of POST /v1/buckets/:name/chunks.
// Texts are embedded as-is, without further splitting.
type IngestChunksRequest struct {
	Texts  []string `json:"texts"`
	Append bool     `json:"append"`
}

func toBucketResponse(info chunkstore.CollectionInfo) BucketResponse {
	return BucketResponse{
		Name:       info.Name,
		Dimensions: info.Dimensions,
		Chunks:     info.Size,
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListBuckets returns every bucket, sorted by name.
func (s *Server) handleListBuckets(c *fiber.Ctx) error {
	infos, err := s.service.Buckets(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}

	buckets := make([]BucketResponse, 0, len(infos))
	for _, info := range infos {
		buckets = append(buckets, toBucketResponse(info))
	}

	return c.JSON(ListBucketsResponse{Buckets: buckets, Count: len(buckets)})
}

// handleCreateBucket creates an empty bucket.
func (s *Server) handleCreateBucket(c *fiber.Ctx) error {
	var req CreateBucketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}

	if err := s.service.CreateBucket(c.Context(), name); err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(BucketResponse{Name: name})
}

// handleGetBucket returns a bucket's dimensionality and size.
func (s *Server) handleGetBucket(c *fiber.Ctx) error {
	info, err := s.service.Bucket(c.Context(), c.Params("name"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(toBucketResponse(info))
}

// handleDeleteBucket removes a bucket. Deleting a missing bucket succeeds.
func (s *Server) handleDeleteBucket(c *fiber.Ctx) error {
	if err := s.service.DeleteBucket(c.Context(), c.Params("name"), retrieval.WithOrigin("api")); err != nil {
		return s.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleIngestChunks embeds pre-split texts into a bucket. The bucket is
// re-created unless append is set.
func (s *Server) handleIngestChunks(c *fiber.Ctx) error {
	var req IngestChunksRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Texts) == 0 {
		return badRequest(c, "texts must not be empty")
	}

	opts := []retrieval.IngestOption{retrieval.WithOrigin("api")}
	if req.Append {
		opts = append(opts, retrieval.WithAppend())
	}

	result, err := s.pipeline.IngestTexts(c.Context(), c.Params("name"), req.Texts, opts...)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// handleIngestDocument extracts, splits and embeds an uploaded document.
// The document is sent as the multipart form field "file"; ?append=true adds
// its chunks to the existing bucket.
func (s *Server) handleIngestDocument(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}

	f, err := header.Open()
	if err != nil {
		return s.writeError(c, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return s.writeError(c, err)
	}

	opts := []retrieval.IngestOption{retrieval.WithOrigin("api")}
	if c.QueryBool("append") {
		opts = append(opts, retrieval.WithAppend())
	}

	result, err := s.pipeline.IngestBytes(
		c.Context(),
		c.Params("name"),
		header.Filename,
		content,
		filepath.Ext(header.Filename),
		opts...,
	)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}
