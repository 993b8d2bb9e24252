package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/similarity"
)

var (
	listBucketsToolName    = "list_buckets"
	listBucketsDescription = "List the document buckets available for retrieval, with their chunk counts and embedding dimensionality."

	queryToolName    = "query"
	queryDescription = "Retrieve the chunks of a document bucket most similar to a question. Returns chunk texts with similarity scores, highest first."

	askToolName    = "ask"
	askDescription = "Answer a question from the contents of a document bucket. Retrieves the most relevant chunks and generates an answer grounded in them."
)

// ListBucketsInput takes no arguments.
type ListBucketsInput struct{}

// ListBucketsOutput represents the output of the list_buckets tool.
type ListBucketsOutput struct {
	Buckets []chunkstore.CollectionInfo `json:"buckets"`
	Count   int                         `json:"count"`
}

// QueryInput represents the input arguments for the query tool.
type QueryInput struct {
	Bucket   string `json:"bucket" jsonschema:"the bucket to search"`
	Question string `json:"question" jsonschema:"the question or text to find similar chunks for"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of chunks to return (default: 4)"`
}

// QueryOutput represents the output of the query tool.
type QueryOutput struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Matches  []similarity.Match `json:"matches"`
	Count    int                `json:"count"`
}

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Bucket   string `json:"bucket" jsonschema:"the bucket to answer from"`
	Question string `json:"question" jsonschema:"the question to answer"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Found    bool               `json:"found"`
	Sources  []similarity.Match `json:"sources"`
}

func (s *Server) handleListBuckets(ctx context.Context, _ *mcp.CallToolRequest, _ ListBucketsInput) (*mcp.CallToolResult, ListBucketsOutput, error) {
	buckets, err := s.config.Service.Buckets(ctx)
	if err != nil {
		s.config.Logger.Error("failed to list buckets", "error", err)
		return toolError("Failed to list buckets: %v", err), ListBucketsOutput{}, nil
	}

	output := ListBucketsOutput{Buckets: buckets, Count: len(buckets)}
	return toolResult(s, output), output, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	if input.Bucket == "" || input.Question == "" {
		return toolError("bucket and question are required"), QueryOutput{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.config.Service.TopK()
	}

	s.config.Logger.Debug("MCP query request",
		"bucket", input.Bucket,
		"top_k", topK,
	)

	result, err := s.config.Service.Query(ctx, input.Bucket, input.Question, topK)
	if err != nil {
		s.config.Logger.Error("MCP query failed", "bucket", input.Bucket, "error", err)
		return toolError("Failed to query bucket: %v", err), QueryOutput{}, nil
	}

	output := QueryOutput{
		Bucket:   input.Bucket,
		Question: input.Question,
		Matches:  result.Matches,
		Count:    len(result.Matches),
	}
	return toolResult(s, output), output, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if input.Bucket == "" || input.Question == "" {
		return toolError("bucket and question are required"), AskOutput{}, nil
	}

	answer, err := s.config.Service.Ask(ctx, input.Bucket, input.Question)
	if err != nil {
		s.config.Logger.Error("MCP ask failed", "bucket", input.Bucket, "error", err)
		return toolError("Failed to answer question: %v", err), AskOutput{}, nil
	}

	output := AskOutput{
		Bucket:   input.Bucket,
		Question: input.Question,
		Answer:   answer.Answer,
		Found:    answer.Found(),
		Sources:  answer.Sources,
	}
	if !answer.Found() {
		output.Answer = retrieval.NotFoundMessage(input.Bucket)
	}
	return toolResult(s, output), output, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// toolResult serializes the structured output into a TextContent block for
// clients that do not read structured content.
func toolResult(s *Server, output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		s.config.Logger.Error("failed to marshal tool output", "error", err)
		return toolError("Failed to serialize results: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}
