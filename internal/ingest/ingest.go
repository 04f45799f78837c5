// Package ingest runs the write path: extract text from an uploaded file,
// chunk it and index the chunks under the material's metadata.
package ingest

import (
	"context"
	"log/slog"

	"github.com/abhisek/examgen/internal/chunker"
	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/extract"
	"github.com/abhisek/examgen/internal/store"
	"github.com/abhisek/examgen/internal/vectorstore"
)

// Request is one uploaded file and the ids it belongs to.
type Request struct {
	Filename   string
	Data       []byte
	MaterialID int64
	CourseID   int64
	ChapterID  int64
}

// Result is the successful outcome of an ingestion.
type Result struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

// Indexer stores chunks tagged with metadata and reports how many were
// committed.
type Indexer interface {
	Index(ctx context.Context, chunks []string, md vectorstore.Metadata) (int, error)
}

// Service ingests course material.
type Service struct {
	chunker *chunker.Chunker
	indexer Indexer
	events  store.EventRepo
	logger  *slog.Logger
}

// New creates a Service. events may be nil.
func New(c *chunker.Chunker, ix Indexer, events store.EventRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chunker: c, indexer: ix, events: events, logger: logger}
}

// Ingest extracts, chunks and indexes req. On an indexing failure the
// returned *errs.Error carries the number of chunks already committed.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	n, err := s.ingest(ctx, req)
	s.record(ctx, req, n, err)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: "ok", Chunks: n}, nil
}

func (s *Service) ingest(ctx context.Context, req Request) (int, error) {
	if err := validate(req); err != nil {
		return 0, err
	}

	text, err := extract.Extract(ctx, req.Filename, req.Data)
	if err != nil {
		return 0, withMaterial(err, req.MaterialID)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, errs.New(errs.KindInput, errs.StageChunk, "document contains no text").WithMaterial(req.MaterialID)
	}

	n, err := s.indexer.Index(ctx, chunks, vectorstore.Metadata{
		MaterialID: req.MaterialID,
		CourseID:   req.CourseID,
		ChapterID:  req.ChapterID,
		Source:     req.Filename,
	})
	if err != nil {
		return n, err
	}

	s.logger.InfoContext(ctx, "material ingested",
		"material_id", req.MaterialID, "source", req.Filename, "chunks", n)
	return n, nil
}

func validate(req Request) error {
	switch {
	case req.MaterialID <= 0:
		return errs.Inputf("material_id must be a positive integer, got %d", req.MaterialID)
	case req.CourseID <= 0:
		return errs.Inputf("course_id must be a positive integer, got %d", req.CourseID).WithMaterial(req.MaterialID)
	case req.ChapterID <= 0:
		return errs.Inputf("chapter_id must be a positive integer, got %d", req.ChapterID).WithMaterial(req.MaterialID)
	case req.Filename == "":
		return errs.Inputf("file name is required").WithMaterial(req.MaterialID)
	}
	return nil
}

func withMaterial(err error, id int64) error {
	if e, ok := errs.As(err); ok && e.MaterialID == 0 {
		e.MaterialID = id
	}
	return err
}

func (s *Service) record(ctx context.Context, req Request, n int, err error) {
	if err != nil {
		s.logger.WarnContext(ctx, "ingestion failed",
			"material_id", req.MaterialID, "source", req.Filename, "committed", n, "error", err)
	}
	if s.events == nil {
		return
	}

	data := store.IngestEventData{
		MaterialID: req.MaterialID,
		CourseID:   req.CourseID,
		ChapterID:  req.ChapterID,
		Source:     req.Filename,
		Chunks:     n,
		Success:    err == nil,
	}
	if err != nil {
		data.ErrorKind = string(errs.KindOf(err))
		data.ErrorMessage = err.Error()
	}
	if aerr := s.events.AppendIngestEvent(context.WithoutCancel(ctx), data); aerr != nil {
		s.logger.WarnContext(ctx, "failed to record ingest event", "error", aerr)
	}
}
