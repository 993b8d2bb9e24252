package gemini_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/embeddings/gemini"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server *httptest.Server
		values string
	)

	BeforeEach(func() {
		values = `[0.25,-0.5]`

		// The SDK may call either embedContent or batchEmbedContents, so the
		// fake answers with both response shapes.
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings":[{"values":` + values + `}],"embedding":{"values":` + values + `}}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := gemini.NewEmbedder(context.Background(), gemini.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("widens the returned embedding", func() {
		e, err := gemini.NewEmbedder(context.Background(), gemini.EmbedderConfig{APIKey: "test-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		vec, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal(vector.Vector{0.25, -0.5}))
	})

	It("rejects an empty embedding", func() {
		values = `[]`

		e, err := gemini.NewEmbedder(context.Background(), gemini.EmbedderConfig{APIKey: "test-key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("empty embedding"))
	})
})
