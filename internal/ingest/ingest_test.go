package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/abhisek/examgen/internal/chunker"
	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/indexer"
	"github.com/abhisek/examgen/internal/store"
	"github.com/abhisek/examgen/internal/vectorstore"
)

// document returns n characters of repeating prose.
func document(n int) string {
	words := strings.Fields("photosynthesis converts light energy into chemical energy stored in glucose molecules")
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString(words[i%len(words)])
		b.WriteByte(' ')
	}
	return b.String()[:n]
}

func openEvents(t *testing.T) store.EventRepo {
	t.Helper()
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s.EventRepo()
}

func newService(t *testing.T, vs vectorstore.Store, events store.EventRepo) *Service {
	t.Helper()
	c, err := chunker.New()
	if err != nil {
		t.Fatal(err)
	}
	return New(c, indexer.New(embedding.NewHashEmbedder(64), vs), events, nil)
}

func TestIngest_TwoThousandCharacterDocument(t *testing.T) {
	ctx := context.Background()
	vs := vectorstore.NewMemory()
	events := openEvents(t)
	svc := newService(t, vs, events)

	res, err := svc.Ingest(ctx, Request{
		Filename:   "biology.txt",
		Data:       []byte(document(2000)),
		MaterialID: 1,
		CourseID:   10,
		ChapterID:  100,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := int(math.Ceil(float64(2000-chunker.DefaultOverlap) / float64(chunker.DefaultMaxSize-chunker.DefaultOverlap)))
	if res.Status != "ok" || res.Chunks != want {
		t.Fatalf("result = %+v, want {ok %d}", res, want)
	}

	stats, _ := vs.Stats(ctx)
	if len(stats) != 1 || stats[0].MaterialID != 1 || stats[0].Chunks != res.Chunks {
		t.Fatalf("store stats = %+v, want %d chunks of material 1", stats, res.Chunks)
	}

	recorded, err := events.QueryIngestEvents(ctx, store.QueryOpts{MaterialID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 1 || !recorded[0].Success || recorded[0].Chunks != want || recorded[0].Source != "biology.txt" {
		t.Fatalf("events = %+v", recorded)
	}
}

func TestIngest_MetadataTagged(t *testing.T) {
	ctx := context.Background()
	vs := vectorstore.NewMemory()
	svc := newService(t, vs, nil)

	if _, err := svc.Ingest(ctx, Request{Filename: "ch2.md", Data: []byte("# Cells\n\nCells divide."), MaterialID: 4, CourseID: 2, ChapterID: 3}); err != nil {
		t.Fatal(err)
	}
	q, _ := embedding.NewHashEmbedder(64).EmbedQuery(ctx, "cells")
	hits, _ := vs.Search(ctx, 4, q, 6)
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	want := vectorstore.Metadata{MaterialID: 4, CourseID: 2, ChapterID: 3, Source: "ch2.md"}
	if hits[0].Metadata != want {
		t.Fatalf("metadata = %+v, want %+v", hits[0].Metadata, want)
	}
}

func TestIngest_InputErrors(t *testing.T) {
	valid := Request{Filename: "a.txt", Data: []byte("text"), MaterialID: 1, CourseID: 1, ChapterID: 1}

	tests := []struct {
		name   string
		mutate func(*Request)
		stage  errs.Stage
	}{
		{"zero material", func(r *Request) { r.MaterialID = 0 }, errs.StageRequest},
		{"negative course", func(r *Request) { r.CourseID = -2 }, errs.StageRequest},
		{"zero chapter", func(r *Request) { r.ChapterID = 0 }, errs.StageRequest},
		{"missing filename", func(r *Request) { r.Filename = "" }, errs.StageRequest},
		{"unsupported type", func(r *Request) { r.Filename = "a.docx" }, errs.StageExtract},
		{"whitespace only", func(r *Request) { r.Data = []byte(" \n\n\t ") }, errs.StageChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := newService(t, vectorstore.NewMemory(), nil).Ingest(context.Background(), req)
			e, ok := errs.As(err)
			if !ok || e.Kind != errs.KindInput {
				t.Fatalf("err = %v, want InputError", err)
			}
			if e.Stage != tt.stage {
				t.Errorf("stage = %s, want %s", e.Stage, tt.stage)
			}
		})
	}
}

// partialIndexer commits some chunks and then fails.
type partialIndexer struct{ committed int }

func (p partialIndexer) Index(_ context.Context, _ []string, md vectorstore.Metadata) (int, error) {
	e := errs.Wrap(errs.KindServiceUnavailable, errs.StageStore, errors.New("disk full"))
	e.MaterialID = md.MaterialID
	e.Committed = p.committed
	return p.committed, e
}

func TestIngest_PartialFailureReportsCommitted(t *testing.T) {
	events := openEvents(t)
	c, _ := chunker.New()
	svc := New(c, partialIndexer{committed: 2}, events, nil)

	_, err := svc.Ingest(context.Background(), Request{
		Filename: "a.txt", Data: []byte(document(2000)), MaterialID: 6, CourseID: 1, ChapterID: 1,
	})
	e, ok := errs.As(err)
	if !ok || e.Kind.Category() != errs.CategoryInfrastructure || e.Committed != 2 {
		t.Fatalf("err = %v, want infrastructure error with 2 committed", err)
	}

	recorded, _ := events.QueryIngestEvents(context.Background(), store.QueryOpts{})
	if len(recorded) != 1 || recorded[0].Success || recorded[0].Chunks != 2 ||
		recorded[0].ErrorKind != string(errs.KindServiceUnavailable) {
		t.Fatalf("events = %+v", recorded)
	}
}
