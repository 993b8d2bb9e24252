// Package retrieval turns questions into ranked chunks and, optionally,
// generated answers.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/generation"
	"github.com/papercomputeco/stacks/pkg/similarity"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// DefaultTopK is used by Ask when no top-K is configured.
const DefaultTopK = 4

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	// Store holds the buckets. Required.
	Store chunkstore.Store

	// Embedder embeds questions. Required.
	Embedder embeddings.Embedder

	// Generator answers questions for Ask. Optional.
	Generator generation.Generator

	// Index ranks chunks. Defaults to a new similarity.Index.
	Index *similarity.Index

	// Metric defaults to vector.DefaultMetric.
	Metric vector.Metric

	// TopK is the number of chunks Ask forwards to the generator.
	TopK int

	// EmbedTimeout and GenerateTimeout bound each provider call on top of
	// the caller's context. Zero means no additional bound.
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration

	// Observer receives state transitions. Optional.
	Observer Observer

	Logger *slog.Logger
}

// Answer is the result of Ask.
type Answer struct {
	Collection string             `json:"collection"`
	Question   string             `json:"question"`
	Answer     string             `json:"answer"`
	Sources    []similarity.Match `json:"sources"`
	Excluded   int                `json:"excluded"`
}

// NotFoundMessage is the reply shown when a question retrieves no chunks.
func NotFoundMessage(collection string) string {
	return fmt.Sprintf("No relevant information found in the '%s' bucket.", collection)
}

// Found reports whether any chunk was retrieved for the question.
func (a *Answer) Found() bool {
	return len(a.Sources) > 0
}

// Session runs one question at a time through
// Idle -> AwaitingEmbedding -> Ranking (-> Generating) -> Idle, passing
// through Failed on any error. Concurrent calls on one Session are
// serialized.
type Session struct {
	config SessionConfig
	index  *similarity.Index
	logger *slog.Logger

	mu    sync.Mutex
	state atomic.Int32
}

// NewSession creates a Session in the Idle state.
func NewSession(c SessionConfig) (*Session, error) {
	if c.Store == nil {
		return nil, errors.New("chunk store is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Metric == "" {
		c.Metric = vector.DefaultMetric
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}

	index := c.Index
	if index == nil {
		index = similarity.NewIndex(c.Logger)
	}

	return &Session{
		config: c,
		index:  index,
		logger: c.Logger,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if s.config.Observer != nil {
		s.config.Observer(from, to)
	}
}

// fail records the failure and returns the session to Idle.
func (s *Session) fail(err error) error {
	s.transition(Failed)
	s.transition(Idle)
	return err
}

// Query embeds the question and returns the topK most similar chunks of the
// collection. Failures are returned as *RetrievalError.
func (s *Session) Query(ctx context.Context, collection, question string, topK int) (*similarity.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.retrieve(ctx, collection, question, topK)
	if err != nil {
		return nil, s.fail(err)
	}

	s.transition(Idle)
	return result, nil
}

// Ask retrieves the configured top-K chunks and forwards them with the
// question to the generator. When nothing is retrieved the generator is not
// called and the returned Answer reports Found() == false. Generator failures
// are returned as *GenerationError.
func (s *Session) Ask(ctx context.Context, collection, question string) (*Answer, error) {
	if s.config.Generator == nil {
		return nil, ErrNoGenerator
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.retrieve(ctx, collection, question, s.config.TopK)
	if err != nil {
		return nil, s.fail(err)
	}

	answer := &Answer{
		Collection: collection,
		Question:   question,
		Sources:    result.Matches,
		Excluded:   result.Excluded,
	}
	if len(result.Matches) == 0 {
		s.transition(Idle)
		return answer, nil
	}

	s.transition(Generating)

	genCtx, cancel := withTimeout(ctx, s.config.GenerateTimeout)
	defer cancel()

	text, err := s.config.Generator.Generate(genCtx, question, result.Texts())
	if err != nil {
		s.logger.Warn("generation failed",
			"collection", collection,
			"error", err,
		)
		return nil, s.fail(&GenerationError{Collection: collection, Err: err})
	}

	answer.Answer = text
	s.transition(Idle)
	return answer, nil
}

// retrieve runs the embedding and ranking stages. It leaves the session in
// Ranking on success.
func (s *Session) retrieve(ctx context.Context, collection, question string, topK int) (*similarity.Result, error) {
	s.transition(AwaitingEmbedding)

	embedCtx, cancel := withTimeout(ctx, s.config.EmbedTimeout)
	queryVec, err := s.config.Embedder.Embed(embedCtx, question)
	cancel()
	if err != nil {
		s.logger.Warn("question embedding failed",
			"collection", collection,
			"error", err,
		)
		return nil, &RetrievalError{Stage: StageEmbedding, Collection: collection, Err: err}
	}

	s.transition(Ranking)

	result, err := s.index.Query(ctx, s.config.Store, collection, queryVec, topK, s.config.Metric)
	if err != nil {
		return nil, &RetrievalError{Stage: StageRanking, Collection: collection, Err: err}
	}

	s.logger.Debug("retrieved chunks",
		"collection", collection,
		"top_k", topK,
		"matches", len(result.Matches),
		"excluded", result.Excluded,
	)

	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
