package mcp_test

import (
	"context"
	"encoding/json"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/api/mcp"
	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
	"github.com/papercomputeco/stacks/pkg/vector"
)

func newService(withGenerator bool) *retrieval.Service {
	embedder := testutils.NewMockEmbedder()
	embedder.Embeddings["cat"] = vector.New(1, 0, 0)
	embedder.Embeddings["kitten"] = vector.New(0.9, 0.1, 0)
	embedder.Embeddings["dog"] = vector.New(0, 1, 0)

	c := retrieval.ServiceConfig{
		Store:    inmemory.NewStore(),
		Embedder: embedder,
		Logger:   logger.Nop(),
	}
	if withGenerator {
		c.Generator = testutils.NewMockGenerator("cats purr")
	}

	svc, err := retrieval.NewService(c)
	Expect(err).NotTo(HaveOccurred())

	_, err = svc.Ingest(context.Background(), "docs", []chunkstore.Entry{
		{Text: "cat", Vector: vector.New(1, 0, 0)},
		{Text: "dog", Vector: vector.New(0, 1, 0)},
	})
	Expect(err).NotTo(HaveOccurred())

	return svc
}

// connect runs the server over an in-memory transport and returns a client
// session.
func connect(ctx context.Context, server *mcp.Server) *gomcp.ClientSession {
	serverTransport, clientTransport := gomcp.NewInMemoryTransports()

	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(serverSession.Close)

	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(session.Close)

	return session
}

func textOf(result *gomcp.CallToolResult) string {
	Expect(result.Content).NotTo(BeEmpty())
	text, ok := result.Content[0].(*gomcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewServer", func() {
		It("returns an error when the service is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("retrieval service is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Service: newService(false)})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		It("only registers ask when a generator is configured", func() {
			server, err := mcp.NewServer(mcp.Config{Service: newService(false), Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			tools, err := connect(ctx, server).ListTools(ctx, &gomcp.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(tools.Tools))
			for _, t := range tools.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("list_buckets", "query"))
		})

		It("lists buckets", func() {
			server, err := mcp.NewServer(mcp.Config{Service: newService(true), Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			result, err := connect(ctx, server).CallTool(ctx, &gomcp.CallToolParams{Name: "list_buckets", Arguments: map[string]any{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			var out mcp.ListBucketsOutput
			Expect(json.Unmarshal([]byte(textOf(result)), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Buckets[0].Name).To(Equal("docs"))
			Expect(out.Buckets[0].Size).To(Equal(2))
		})

		It("queries a bucket", func() {
			server, err := mcp.NewServer(mcp.Config{Service: newService(true), Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			result, err := connect(ctx, server).CallTool(ctx, &gomcp.CallToolParams{
				Name:      "query",
				Arguments: map[string]any{"bucket": "docs", "question": "kitten", "top_k": 1},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			var out mcp.QueryOutput
			Expect(json.Unmarshal([]byte(textOf(result)), &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Matches[0].Text).To(Equal("cat"))
		})

		It("reports a missing bucket as a tool error", func() {
			server, err := mcp.NewServer(mcp.Config{Service: newService(true), Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			result, err := connect(ctx, server).CallTool(ctx, &gomcp.CallToolParams{
				Name:      "query",
				Arguments: map[string]any{"bucket": "nope", "question": "cat"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("collection not found"))
		})

		It("answers a question", func() {
			server, err := mcp.NewServer(mcp.Config{Service: newService(true), Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			result, err := connect(ctx, server).CallTool(ctx, &gomcp.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"bucket": "docs", "question": "cat"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			var out mcp.AskOutput
			Expect(json.Unmarshal([]byte(textOf(result)), &out)).To(Succeed())
			Expect(out.Found).To(BeTrue())
			Expect(out.Answer).To(Equal("cats purr"))
		})
	})
})
