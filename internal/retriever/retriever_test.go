package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/vectorstore"
)

func seed(t *testing.T, s vectorstore.Store, e embedding.Embedder, material int64, texts ...string) {
	t.Helper()
	ctx := context.Background()
	vecs, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		err := s.Add(ctx, vectorstore.Record{
			ID:        uuid.New(),
			Content:   text,
			Metadata:  vectorstore.Metadata{MaterialID: material},
			Embedding: vecs[i],
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRetrieve_ScopedAndRanked(t *testing.T) {
	e := embedding.NewHashEmbedder(256)
	s := vectorstore.NewMemory()
	seed(t, s, e, 1,
		"mitochondria produce energy for the cell",
		"the cell membrane controls what enters the cell",
		"ribosomes build proteins",
	)
	seed(t, s, e, 2, "mitochondria produce energy for the cell through respiration")

	r := New(e, s, 0, nil)
	got, err := r.Retrieve(context.Background(), 1, "mitochondria energy", Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, c := range got {
		if c.Metadata.MaterialID != 1 {
			t.Fatalf("chunk from material %d leaked", c.Metadata.MaterialID)
		}
	}
	if got[0].Content != "mitochondria produce energy for the cell" {
		t.Fatalf("top hit = %q", got[0].Content)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatal("results not in descending score order")
		}
	}
}

func TestRetrieve_DefaultK(t *testing.T) {
	e := embedding.NewHashEmbedder(32)
	s := vectorstore.NewMemory()
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "photosynthesis fact"
	}
	seed(t, s, e, 4, texts...)

	got, err := New(e, s, 0, nil).Retrieve(context.Background(), 4, "photosynthesis", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != DefaultK {
		t.Fatalf("len = %d, want %d", len(got), DefaultK)
	}

	got, _ = New(e, s, 0, nil).Retrieve(context.Background(), 4, "photosynthesis", Options{K: 2})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestRetrieve_ScoreThreshold(t *testing.T) {
	e := embedding.NewHashEmbedder(256)
	s := vectorstore.NewMemory()
	seed(t, s, e, 1, "plate tectonics moves continents", "volcanoes erupt lava")

	threshold := 0.99
	got, err := New(e, s, 0, nil).Retrieve(context.Background(), 1, "plate tectonics moves continents",
		Options{ScoreThreshold: &threshold})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "plate tectonics moves continents" {
		t.Fatalf("got %+v", got)
	}
}

func TestRetrieve_EmptyMaterial(t *testing.T) {
	e := embedding.NewHashEmbedder(8)
	got, err := New(e, vectorstore.NewMemory(), 0, nil).Retrieve(context.Background(), 9, "q", Options{})
	if err != nil || len(got) != 0 {
		t.Fatalf("Retrieve = %v, %v; want empty", got, err)
	}
}

func TestRetrieve_InvalidMaterial(t *testing.T) {
	_, err := New(embedding.NewHashEmbedder(8), vectorstore.NewMemory(), 0, nil).
		Retrieve(context.Background(), 0, "q", Options{})
	if !errs.Is(err, errs.KindInput) {
		t.Fatalf("err = %v, want InputError", err)
	}
}

// leakyStore ignores the material filter, simulating a faulty backend.
type leakyStore struct {
	vectorstore.Store
	hits []vectorstore.Scored
}

func (l leakyStore) Search(context.Context, int64, []float32, int) ([]vectorstore.Scored, error) {
	return l.hits, nil
}

func TestRetrieve_DropsForeignChunks(t *testing.T) {
	s := leakyStore{hits: []vectorstore.Scored{
		{Record: vectorstore.Record{Content: "mine", Metadata: vectorstore.Metadata{MaterialID: 1}}, Score: 0.9},
		{Record: vectorstore.Record{Content: "theirs", Metadata: vectorstore.Metadata{MaterialID: 2}}, Score: 0.8},
	}}
	got, err := New(embedding.NewHashEmbedder(8), s, 0, nil).Retrieve(context.Background(), 1, "q", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "mine" {
		t.Fatalf("got %+v", got)
	}
}

type slowStore struct{ vectorstore.Store }

func (slowStore) Search(ctx context.Context, _ int64, _ []float32, _ int) ([]vectorstore.Scored, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenEmbedder struct{ embedding.Embedder }

func (brokenEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestRetrieve_ServiceFailures(t *testing.T) {
	_, err := New(embedding.NewHashEmbedder(8), slowStore{}, 10*time.Millisecond, nil).
		Retrieve(context.Background(), 1, "q", Options{})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindServiceTimeout || e.Stage != errs.StageRetrieve || e.MaterialID != 1 {
		t.Fatalf("err = %v, want ServiceTimeout at retrieve", err)
	}

	_, err = New(brokenEmbedder{}, vectorstore.NewMemory(), 0, nil).
		Retrieve(context.Background(), 1, "q", Options{})
	if !errs.Is(err, errs.KindServiceUnavailable) {
		t.Fatalf("err = %v, want ServiceUnavailable", err)
	}
}
