// Package ollama implements pkg/generation's Generator against Ollama's chat API.
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

	"github.com/papercomputeco/stacks/pkg/generation"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// GeneratorConfig holds configuration for the Ollama generator.
type GeneratorConfig struct {
	BaseURL        string
	Model          string
	Temperature    float64
	PromptTemplate string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// Generator calls Ollama's /api/chat endpoint without streaming.
type Generator struct {
	baseURL     string
	model       string
	temperature float64
	template    string
	httpClient  *http.Client
}

// NewGenerator creates a new Ollama generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Generator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: cfg.Temperature,
		template:    cfg.PromptTemplate,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Generate sends the rendered prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	request := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: generation.BuildPrompt(g.template, question, contextChunks)},
		},
		Stream:  false,
		Options: chatOptions{Temperature: g.temperature},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: marshal ollama request: %w", generation.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create ollama request: %w", generation.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send ollama request: %w", generation.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama status %d: %s", generation.ErrGeneration, resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %w", generation.ErrGeneration, err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("%w: ollama error: %s", generation.ErrGeneration, response.Error)
	}

	return response.Message.Content, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ generation.Generator = (*Generator)(nil)
