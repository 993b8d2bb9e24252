package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 64
)

// ErrPoolClosed is returned by Embed after Close.
var ErrPoolClosed = errors.New("embedding pool closed")

// job is a single chunk to embed. Results are sent back on results keyed by
// index so the caller can restore document order.
type job struct {
	ctx     context.Context
	index   int
	text    string
	results chan<- result
}

type result struct {
	index int
	vec   vector.Vector
	err   error
}

// PoolConfig is the configuration options for the embedding pool.
type PoolConfig struct {
	// Embedder generates the chunk embeddings.
	Embedder embeddings.Embedder

	// NumWorkers is the number of concurrent embedding calls.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel.
	QueueSize uint

	Logger *slog.Logger
}

// Pool embeds chunks concurrently with a fixed number of workers.
type Pool struct {
	config *PoolConfig
	queue  chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeMu sync.RWMutex
	closed  bool
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	p := &Pool{
		config: c,
		queue:  make(chan job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Embed embeds every text and returns the entries in input order. The first
// failure cancels the remaining jobs and is returned.
func (p *Pool) Embed(ctx context.Context, texts []string) ([]chunkstore.Entry, error) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	if len(texts) == 0 {
		return []chunkstore.Entry{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(texts))

	go func() {
		for i, text := range texts {
			select {
			case p.queue <- job{ctx: ctx, index: i, text: text, results: results}:
			case <-ctx.Done():
				// report the unsent jobs so the collector below terminates
				for j := i; j < len(texts); j++ {
					results <- result{index: j, err: ctx.Err()}
				}
				return
			}
		}
	}()

	entries := make([]chunkstore.Entry, len(texts))
	var firstErr error
	for range texts {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("embedding chunk %d: %w", r.index, r.err)
				cancel()
			}
			continue
		}
		entries[r.index] = chunkstore.Entry{Text: texts[r.index], Vector: r.vec}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return entries, nil
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("embedding worker started", "worker_id", id)

	for j := range p.queue {
		j.results <- p.processJob(j)
	}

	p.logger.Debug("embedding worker stopped", "worker_id", id)
}

func (p *Pool) processJob(j job) result {
	if err := j.ctx.Err(); err != nil {
		return result{index: j.index, err: err}
	}

	vec, err := p.config.Embedder.Embed(j.ctx, j.text)
	if err != nil {
		return result{index: j.index, err: err}
	}

	return result{index: j.index, vec: vec}
}
