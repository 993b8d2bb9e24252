// Package chroma provides a chunk store backed by Chroma's REST API. Each
// bucket is a Chroma collection; chunk IDs are the document IDs. Chroma
// stores float32 embeddings, so the store must be opened with AllowLossy.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

const (
	// DefaultCollectionPrefix namespaces stacks buckets on a shared server.
	DefaultCollectionPrefix = "stacks_"

	apiPrefix = "/api/v2/tenants/default_tenant/databases/default_database"
	pageSize  = 256
)

var errNotFound = errors.New("chroma: not found")

// Store implements chunkstore.Store using Chroma's REST API.
type Store struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	locks      chunkstore.Locks
	logger     *slog.Logger
}

// Config holds configuration for the Chroma store.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionPrefix defaults to DefaultCollectionPrefix.
	CollectionPrefix string

	// AllowLossy acknowledges that vectors are narrowed to float32.
	AllowLossy bool
}

// NewStore creates a new Chroma chunk store.
func NewStore(c Config, logger *slog.Logger) (*Store, error) {
	if !c.AllowLossy {
		return nil, chunkstore.ErrLossyNotAllowed
	}

	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}

	logger.Info("using chroma chunk store", "url", c.URL)

	return &Store{
		baseURL: strings.TrimSuffix(c.URL, "/"),
		prefix:  prefix,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (s *Store) collection(ctx context.Context, name string) (*chromaCollection, error) {
	var c chromaCollection
	err := s.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(s.prefix+name), nil, &c)
	if errors.Is(err, errNotFound) {
		return nil, &chunkstore.CollectionNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", name, err)
	}
	return &c, nil
}

func (s *Store) count(ctx context.Context, c *chromaCollection) (uint64, error) {
	var n uint64
	if err := s.do(ctx, http.MethodGet, "/collections/"+c.ID+"/count", nil, &n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.Name, err)
	}
	return n, nil
}

// CreateCollection creates a Chroma collection.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	_, err := s.collection(ctx, name)
	if err == nil {
		return &chunkstore.DuplicateCollectionError{Name: name}
	}
	if !errors.Is(err, chunkstore.ErrCollectionNotFound) {
		return err
	}

	req := chromaCreateRequest{
		Name:     s.prefix + name,
		Metadata: map[string]any{"bucket": name},
	}
	if err := s.do(ctx, http.MethodPost, "/collections", req, nil); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Debug("created chroma collection", "collection", name)
	return nil
}

// Insert adds a document whose ID is the collection's size plus one.
func (s *Store) Insert(ctx context.Context, name, text string, vec vector.Vector) (uint64, error) {
	if vec.Dim() == 0 {
		return 0, &chunkstore.EmptyVectorError{Collection: name}
	}

	defer s.locks.Writer(name)()

	c, err := s.collection(ctx, name)
	if err != nil {
		return 0, err
	}

	if c.Dimension != nil && *c.Dimension != vec.Dim() {
		return 0, &vector.DimensionMismatchError{
			Collection: name,
			Expected:   *c.Dimension,
			Actual:     vec.Dim(),
		}
	}

	n, err := s.count(ctx, c)
	if err != nil {
		return 0, err
	}
	id := n + 1

	req := chromaAddRequest{
		IDs:        []string{strconv.FormatUint(id, 10)},
		Embeddings: [][]float32{vec.Float32()},
		Documents:  []string{text},
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+c.ID+"/add", req, nil); err != nil {
		return 0, fmt.Errorf("adding chunk %d to %s: %w", id, name, err)
	}

	return id, nil
}

// ListCollections returns the buckets on the server, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	var collections []chromaCollection
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &collections); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	names := []string{}
	for _, c := range collections {
		if name, ok := strings.CutPrefix(c.Name, s.prefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

// All fetches documents by ID range in ascending order, bounded by the
// document count when each iteration began.
func (s *Store) All(ctx context.Context, name string) (iter.Seq2[chunkstore.Chunk, error], error) {
	if _, err := s.collection(ctx, name); err != nil {
		return nil, err
	}

	return func(yield func(chunkstore.Chunk, error) bool) {
		c, err := s.collection(ctx, name)
		if err != nil {
			yield(chunkstore.Chunk{}, err)
			return
		}

		maxID, err := s.count(ctx, c)
		if err != nil {
			yield(chunkstore.Chunk{}, err)
			return
		}

		for first := uint64(1); first <= maxID; first += pageSize {
			last := min(first+pageSize-1, maxID)

			page, err := s.page(ctx, c, first, last)
			if err != nil {
				yield(chunkstore.Chunk{}, err)
				return
			}

			for _, chunk := range page {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}, nil
}

func (s *Store) page(ctx context.Context, c *chromaCollection, first, last uint64) ([]chunkstore.Chunk, error) {
	ids := make([]string, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, strconv.FormatUint(id, 10))
	}

	var resp chromaGetResponse
	req := chromaGetRequest{IDs: ids, Include: []string{"documents", "embeddings"}}
	if err := s.do(ctx, http.MethodPost, "/collections/"+c.ID+"/get", req, &resp); err != nil {
		return nil, fmt.Errorf("getting chunks of %s: %w", c.Name, err)
	}

	chunks := make([]chunkstore.Chunk, 0, len(resp.IDs))
	for i, rawID := range resp.IDs {
		id, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing chunk id %q: %w", rawID, err)
		}

		chunk := chunkstore.Chunk{ID: id}
		if i < len(resp.Documents) && resp.Documents[i] != nil {
			chunk.Text = *resp.Documents[i]
		}
		if i < len(resp.Embeddings) {
			chunk.Vector = vector.FromFloat32(resp.Embeddings[i])
		}
		chunks = append(chunks, chunk)
	}

	// Chroma does not promise to return ids in request order
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })

	return chunks, nil
}

// Info returns the collection's dimensionality and size.
func (s *Store) Info(ctx context.Context, name string) (chunkstore.CollectionInfo, error) {
	c, err := s.collection(ctx, name)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	n, err := s.count(ctx, c)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	info := chunkstore.CollectionInfo{Name: name, Size: int(n)}
	if c.Dimension != nil {
		info.Dimensions = *c.Dimension
	}
	return info, nil
}

// DeleteCollection drops the Chroma collection.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	err := s.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(s.prefix+name), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	s.locks.Forget(name)
	return nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
