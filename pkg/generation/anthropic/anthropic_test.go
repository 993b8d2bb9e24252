package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/papercomputeco/stacks/pkg/generation"
	"github.com/papercomputeco/stacks/pkg/generation/anthropic"
)

var _ = Describe("Generator", func() {
	var (
		server   *httptest.Server
		status   int
		response string
		got      map[string]any
		headers  http.Header
	)

	BeforeEach(func() {
		status = http.StatusOK
		response = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001","stop_reason":"end_turn","content":[{"type":"text","text":"A young "},{"type":"text","text":"cat."}],"usage":{"input_tokens":10,"output_tokens":4}}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			headers = r.Header.Clone()
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := anthropic.NewGenerator(anthropic.GeneratorConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("joins the text blocks of the response", func() {
		g, err := anthropic.NewGenerator(anthropic.GeneratorConfig{APIKey: "key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		answer, err := g.Generate(context.Background(), "What is a kitten?", []string{"kitten"})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("A young cat."))
		Expect(headers.Get("x-api-key")).To(Equal("key"))
		Expect(headers.Get("anthropic-version")).To(Equal("2023-06-01"))
		Expect(got["model"]).To(Equal(anthropic.DefaultModel))
		Expect(got["max_tokens"]).To(BeNumerically("==", 1024))

		messages, ok := got["messages"].([]any)
		Expect(ok).To(BeTrue())
		Expect(messages).To(HaveLen(1))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("user"))
	})

	It("fails when the reply has no text", func() {
		response = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5-20251001","content":[],"usage":{"input_tokens":10,"output_tokens":0}}`

		g, err := anthropic.NewGenerator(anthropic.GeneratorConfig{APIKey: "key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "q", nil)
		Expect(errors.Is(err, generation.ErrGeneration)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("no content"))
	})

	It("wraps API errors in ErrGeneration", func() {
		status = http.StatusUnauthorized
		response = `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`

		g, err := anthropic.NewGenerator(anthropic.GeneratorConfig{APIKey: "key", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = g.Generate(context.Background(), "q", nil)
		Expect(errors.Is(err, generation.ErrGeneration)).To(BeTrue())

		var apiErr *sdk.Error
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})
