package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
	"github.com/papercomputeco/stacks/pkg/vector"
)

type testServer struct {
	server    *Server
	store     *inmemory.Store
	embedder  *testutils.MockEmbedder
	generator *testutils.MockGenerator
}

func newTestServer(withGenerator bool) *testServer {
	log := logger.Nop()
	store := inmemory.NewStore()

	embedder := testutils.NewMockEmbedder()
	embedder.Embeddings["cat"] = vector.New(1, 0, 0)
	embedder.Embeddings["kitten"] = vector.New(0.9, 0.1, 0)
	embedder.Embeddings["dog"] = vector.New(0, 1, 0)
	embedder.FailOn = "broken"

	c := retrieval.ServiceConfig{
		Store:    store,
		Embedder: embedder,
		TopK:     1,
		Logger:   log,
	}

	ts := &testServer{store: store, embedder: embedder}
	if withGenerator {
		ts.generator = testutils.NewMockGenerator("cats purr")
		c.Generator = ts.generator
	}

	service, err := retrieval.NewService(c)
	Expect(err).NotTo(HaveOccurred())

	pool, err := ingest.NewPool(&ingest.PoolConfig{Embedder: embedder, NumWorkers: 2, Logger: log})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(pool.Close)

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{Service: service, Pool: pool, Logger: log})
	Expect(err).NotTo(HaveOccurred())

	ts.server, err = NewServer(Config{ListenAddr: ":0"}, service, pipeline, log)
	Expect(err).NotTo(HaveOccurred())

	return ts
}

func (ts *testServer) seed(bucket string, texts ...string) {
	ctx := context.Background()
	Expect(ts.store.CreateCollection(ctx, bucket)).To(Succeed())
	for _, text := range texts {
		vec, err := ts.embedder.Embed(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		_, err = ts.store.Insert(ctx, bucket, text, vec)
		Expect(err).NotTo(HaveOccurred())
	}
}

func (ts *testServer) do(method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	var out T
	defer resp.Body.Close()
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("NewServer", func() {
	It("requires a service", func() {
		_, err := NewServer(Config{}, nil, &ingest.Pipeline{}, logger.Nop())
		Expect(err).To(MatchError("retrieval service is required"))
	})
})

var _ = Describe("Buckets", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer(false)
	})

	It("answers ping", func() {
		resp := ts.do(http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(decode[string](resp)).To(Equal("pong"))
	})

	It("lists buckets sorted by name", func() {
		ts.seed("zoo", "cat")
		ts.seed("animals", "cat", "dog")

		resp := ts.do(http.MethodGet, "/v1/buckets", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		body := decode[ListBucketsResponse](resp)
		Expect(body.Count).To(Equal(2))
		Expect(body.Buckets[0]).To(Equal(BucketResponse{Name: "animals", Dimensions: 3, Chunks: 2}))
		Expect(body.Buckets[1].Name).To(Equal("zoo"))
	})

	It("creates a bucket and rejects duplicates", func() {
		resp := ts.do(http.MethodPost, "/v1/buckets", CreateBucketRequest{Name: "notes"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

		resp = ts.do(http.MethodPost, "/v1/buckets", CreateBucketRequest{Name: "notes"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		Expect(decode[ErrorResponse](resp).Code).To(Equal(codeConflict))
	})

	It("rejects a bucket without a name", func() {
		resp := ts.do(http.MethodPost, "/v1/buckets", CreateBucketRequest{})
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("returns 404 for a missing bucket", func() {
		resp := ts.do(http.MethodGet, "/v1/buckets/missing", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		Expect(decode[ErrorResponse](resp).Code).To(Equal(codeNotFound))
	})

	It("deletes buckets idempotently", func() {
		ts.seed("docs", "cat")

		resp := ts.do(http.MethodDelete, "/v1/buckets/docs", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

		resp = ts.do(http.MethodDelete, "/v1/buckets/docs", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

		names, err := ts.store.ListCollections(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(BeEmpty())
	})
})

var _ = Describe("Ingestion", func() {
	var ts *testServer

	BeforeEach(func() {
		ts = newTestServer(false)
	})

	It("embeds chunks into a new bucket", func() {
		resp := ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{Texts: []string{"cat", "dog"}})
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

		result := decode[retrieval.IngestResult](resp)
		Expect(result.Collection).To(Equal("docs"))
		Expect(result.Chunks).To(Equal(2))
		Expect(result.Dimensions).To(Equal(3))
	})

	It("replaces the bucket unless append is set", func() {
		ts.seed("docs", "cat", "dog")

		resp := ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{Texts: []string{"kitten"}})
		Expect(decode[retrieval.IngestResult](resp).Chunks).To(Equal(1))

		resp = ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{Texts: []string{"dog"}, Append: true})
		Expect(decode[retrieval.IngestResult](resp).Chunks).To(Equal(2))
	})

	It("rejects an empty chunk list", func() {
		resp := ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{})
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("reports embedding failures as 502", func() {
		resp := ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{Texts: []string{"cat", "broken"}})
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		Expect(decode[ErrorResponse](resp).Code).To(Equal(codeEmbedding))
	})

	It("rejects vectors of a different dimensionality when appending", func() {
		Expect(ts.store.CreateCollection(context.Background(), "docs")).To(Succeed())
		_, err := ts.store.Insert(context.Background(), "docs", "flat", vector.New(1, 0))
		Expect(err).NotTo(HaveOccurred())

		resp := ts.do(http.MethodPost, "/v1/buckets/docs/chunks", IngestChunksRequest{Texts: []string{"cat"}, Append: true})
		Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		Expect(decode[ErrorResponse](resp).Code).To(Equal(codeDimensionMismatch))
	})

	Describe("document upload", func() {
		upload := func(filename string, content []byte, query string) *http.Response {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := w.CreateFormFile("file", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Close()).To(Succeed())

			req, err := http.NewRequest(http.MethodPost, "/v1/buckets/notes/documents"+query, &buf)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", w.FormDataContentType())

			resp, err := ts.server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("ingests a plain text document", func() {
			resp := upload("notes.txt", []byte("cat"), "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			Expect(decode[retrieval.IngestResult](resp).Chunks).To(Equal(1))
		})

		It("ingests a PDF document", func() {
			resp := upload("notes.pdf", testutils.MinimalPDF("the cat sat on the mat"), "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			Expect(decode[retrieval.IngestResult](resp).Chunks).To(BeNumerically(">=", 1))
		})

		It("appends when requested", func() {
			upload("notes.txt", []byte("cat"), "")
			resp := upload("more.txt", []byte("dog"), "?append=true")
			Expect(decode[retrieval.IngestResult](resp).Chunks).To(Equal(2))
		})

		It("rejects unsupported formats", func() {
			resp := upload("notes.docx", []byte("cat"), "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
			Expect(decode[ErrorResponse](resp).Code).To(Equal(codeInvalidDocument))
		})

		It("rejects empty documents", func() {
			resp := upload("notes.txt", []byte("   \n"), "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("requires the file field", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/buckets/notes/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := ts.server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})

var _ = Describe("Retrieval", func() {
	Describe("query", func() {
		var ts *testServer

		BeforeEach(func() {
			ts = newTestServer(false)
			ts.seed("animals", "cat", "dog")
		})

		It("returns the configured top-K by default", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", QueryRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := decode[QueryResponse](resp)
			Expect(body.Metric).To(Equal("cosine"))
			Expect(body.Count).To(Equal(1))
			Expect(body.Matches[0].Text).To(Equal("cat"))
			Expect(body.Matches[0].ID).To(Equal(uint64(1)))
		})

		It("treats an explicit top_k of 0 as the configured default", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", map[string]any{"question": "kitten", "top_k": 0})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[QueryResponse](resp).Count).To(Equal(1))
		})

		It("rejects a negative top_k", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", map[string]any{"question": "kitten", "top_k": -1})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("honors an explicit top_k", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", QueryRequest{Question: "kitten", TopK: 5})
			body := decode[QueryResponse](resp)
			Expect(body.Count).To(Equal(2))
			Expect(body.Matches[0].Score).To(BeNumerically(">", body.Matches[1].Score))
		})

		It("requires a question", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", QueryRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for a missing bucket", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/missing/query", QueryRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("reports question embedding failures as retrieval errors", func() {
			resp := ts.do(http.MethodPost, "/v1/buckets/animals/query", QueryRequest{Question: "broken"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
			Expect(decode[ErrorResponse](resp).Code).To(Equal(codeRetrieval))
		})
	})

	Describe("ask", func() {
		It("returns 503 without a generator", func() {
			ts := newTestServer(false)
			ts.seed("animals", "cat")

			resp := ts.do(http.MethodPost, "/v1/buckets/animals/ask", AskRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})

		It("answers from the top chunks", func() {
			ts := newTestServer(true)
			ts.seed("animals", "cat", "dog")

			resp := ts.do(http.MethodPost, "/v1/buckets/animals/ask", AskRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := decode[AskResponse](resp)
			Expect(body.Found).To(BeTrue())
			Expect(body.Answer).To(Equal("cats purr"))
			Expect(body.Sources).To(HaveLen(1))
			Expect(body.Sources[0].Text).To(Equal("cat"))
		})

		It("reports an empty bucket without calling the generator", func() {
			ts := newTestServer(true)
			Expect(ts.store.CreateCollection(context.Background(), "empty")).To(Succeed())

			resp := ts.do(http.MethodPost, "/v1/buckets/empty/ask", AskRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := decode[AskResponse](resp)
			Expect(body.Found).To(BeFalse())
			Expect(body.Answer).To(Equal("No relevant information found in the 'empty' bucket."))
			Expect(ts.generator.CallCount).To(BeZero())
		})

		It("reports generator failures as 502", func() {
			ts := newTestServer(true)
			ts.seed("animals", "cat")
			ts.generator.Fail = true

			resp := ts.do(http.MethodPost, "/v1/buckets/animals/ask", AskRequest{Question: "kitten"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
			Expect(decode[ErrorResponse](resp).Code).To(Equal(codeGeneration))
		})
	})
})
