package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/embeddings/openai"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		requests int
		lastBody map[string]any
		status   int
		response string
	)

	BeforeEach(func() {
		requests = 0
		lastBody = nil
		status = http.StatusOK
		response = `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			requests++
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&lastBody)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("returns the single embedding", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     "sk-test",
			BaseURL:    server.URL + "/v1",
			Dimensions: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		vec, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal(vector.Vector{0.25, -0.5}))
		Expect(lastBody["model"]).To(Equal(openai.DefaultEmbeddingModel))
		Expect(lastBody["dimensions"]).To(BeNumerically("==", 2))
	})

	It("rejects an empty embedding", func() {
		response = `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`

		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("empty embedding"))
	})

	It("does not retry failed requests", func() {
		status = http.StatusInternalServerError
		response = `{"error":{"message":"boom","type":"server_error"}}`

		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(requests).To(Equal(1))
	})
})
