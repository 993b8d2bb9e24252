package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
)

// FakeOllama serves Ollama's /api/embed and /api/chat endpoints. Embeddings
// count occurrences of each keyword in the input, plus a constant component
// so no vector is zero. Chat always replies with Answer.
type FakeOllama struct {
	*httptest.Server

	Keywords []string
	Answer   string

	embedCalls atomic.Int64
	chatCalls  atomic.Int64
}

// NewFakeOllama starts a FakeOllama. Callers must Close it.
func NewFakeOllama(answer string, keywords ...string) *FakeOllama {
	f := &FakeOllama{Keywords: keywords, Answer: answer}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", f.handleEmbed)
	mux.HandleFunc("POST /api/chat", f.handleChat)
	f.Server = httptest.NewServer(mux)

	return f
}

// EmbedCalls returns the number of embed requests served.
func (f *FakeOllama) EmbedCalls() int {
	return int(f.embedCalls.Load())
}

// ChatCalls returns the number of chat requests served.
func (f *FakeOllama) ChatCalls() int {
	return int(f.chatCalls.Load())
}

// Vector returns the embedding served for text.
func (f *FakeOllama) Vector(text string) []float64 {
	lower := strings.ToLower(text)
	v := make([]float64, 0, len(f.Keywords)+1)
	for _, k := range f.Keywords {
		v = append(v, float64(strings.Count(lower, k)))
	}
	return append(v, 0.1)
}

func (f *FakeOllama) handleEmbed(w http.ResponseWriter, r *http.Request) {
	f.embedCalls.Add(1)

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"embeddings": [][]float64{f.Vector(req.Input)},
	})
}

func (f *FakeOllama) handleChat(w http.ResponseWriter, _ *http.Request) {
	f.chatCalls.Add(1)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": map[string]string{"role": "assistant", "content": f.Answer},
		"done":    true,
	})
}
