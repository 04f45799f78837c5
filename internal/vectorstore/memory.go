package vectorstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps records in process, partitioned by material id so a
// search only ever touches the requested material's records.
type MemoryStore struct {
	mu        sync.RWMutex
	materials map[int64][]Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{materials: make(map[int64][]Record)}
}

func (m *MemoryStore) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Embedding = slices.Clone(rec.Embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	id := rec.Metadata.MaterialID
	m.materials[id] = append(m.materials[id], rec)
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, materialID int64, query []float32, k int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	partition := m.materials[materialID]
	hits := make([]Scored, 0, len(partition))
	for _, rec := range partition {
		score, err := cosine(query, rec.Embedding)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Scored{Record: rec, Score: score})
	}
	return topK(hits, k), nil
}

func (m *MemoryStore) DeleteMaterial(ctx context.Context, materialID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.materials[materialID])
	delete(m.materials, materialID)
	return n, nil
}

func (m *MemoryStore) Stats(ctx context.Context) ([]MaterialStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MaterialStats, 0, len(m.materials))
	for id, recs := range m.materials {
		st := MaterialStats{MaterialID: id, Chunks: len(recs)}
		for _, r := range recs {
			if r.CreatedAt.After(st.LastAdded) {
				st.LastAdded = r.CreatedAt
			}
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b MaterialStats) int { return cmp.Compare(a.MaterialID, b.MaterialID) })
	return out, nil
}
