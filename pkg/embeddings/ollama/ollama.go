// Package ollama implements pkg/embeddings' Embedder client for Ollama's
// /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "embeddinggemma"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// requestTimeout caps a single request when the caller's context has no
	// earlier deadline; a cold model load can take a while.
	requestTimeout = 2 * time.Minute

	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 4 << 10
)

// Embedder embeds text with a model served by Ollama.
type Embedder struct {
	endpoint   string
	model      string
	dimensions int
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the embedding model, e.g. "embeddinggemma" or "all-minilm".
	// Defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions truncates embeddings on models that support it. Zero keeps
	// the model's native size.
	Dimensions int
}

type embedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// Values are decoded as float64 so nothing is lost in transit.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative, got %d", cfg.Dimensions)
	}

	return &Embedder{
		endpoint:   baseURL + "/api/embed",
		model:      model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Embed returns the single embedding Ollama computes for text.
func (e *Embedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	body, err := json.Marshal(embedRequest{
		Model:      e.model,
		Input:      text,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama %s: %w", embeddings.ErrEmbedding, e.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama %s: status %d: %s",
			embeddings.ErrEmbedding, e.model, resp.StatusCode, readError(resp.Body))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", embeddings.ErrEmbedding, err)
	}

	if len(out.Embeddings) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", embeddings.ErrEmbedding, len(out.Embeddings))
	}
	if len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama %s returned an empty embedding", embeddings.ErrEmbedding, e.model)
	}

	return vector.New(out.Embeddings[0]...), nil
}

// Close is a no-op; the HTTP client needs no cleanup.
func (e *Embedder) Close() error {
	return nil
}

// readError extracts Ollama's {"error": "..."} message, falling back to the
// raw body.
func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

var _ embeddings.Embedder = (*Embedder)(nil)
