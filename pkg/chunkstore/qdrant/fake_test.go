package qdrant_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

type fakePoint struct {
	text   string
	vector []float32
}

// fakeClient keeps collections in memory and mimics Qdrant's scroll order.
type fakeClient struct {
	mu          sync.Mutex
	collections map[string]map[uint64]fakePoint
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{collections: map[string]map[uint64]fakePoint{}}
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[req.CollectionName]; ok {
		return errors.New("already exists")
	}
	f.collections[req.CollectionName] = map[uint64]fakePoint{}
	return nil
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

func (f *fakeClient) ListCollections(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := []string{"someone_else"}
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points, ok := f.collections[req.CollectionName]
	if !ok {
		return nil, errors.New("not found")
	}
	for _, p := range req.Points {
		points[p.GetId().GetNum()] = fakePoint{
			text:   p.GetPayload()["text"].GetStringValue(),
			vector: inputData(p.GetVectors().GetVector()),
		}
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Count(_ context.Context, req *qdrant.CountPoints) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.collections[req.CollectionName])), nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	points := f.collections[req.CollectionName]
	ids := make([]uint64, 0, len(points))
	for id := range points {
		if id >= req.GetOffset().GetNum() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit := int(req.GetLimit()); limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*qdrant.RetrievedPoint, 0, len(ids))
	for _, id := range ids {
		p := points[id]
		out = append(out, &qdrant.RetrievedPoint{
			Id:      qdrant.NewIDNum(id),
			Payload: qdrant.NewValueMap(map[string]any{"text": p.text}),
			Vectors: &qdrant.VectorsOutput{
				VectorsOptions: &qdrant.VectorsOutput_Vector{
					Vector: &qdrant.VectorOutput{Data: p.vector},
				},
			},
		})
	}
	return out, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func inputData(v *qdrant.Vector) []float32 {
	if data := v.GetData(); len(data) > 0 {
		return data
	}
	return v.GetDense().GetData()
}
