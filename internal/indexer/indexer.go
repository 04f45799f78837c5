// Package indexer embeds chunks and writes them to the vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/vectorstore"
)

const (
	// DefaultWorkers is the number of batches embedded and stored concurrently.
	DefaultWorkers = 4

	// DefaultBatchSize is the number of chunks sent per embedding call.
	DefaultBatchSize = 16
)

// Indexer is best effort: chunks stored before a failure stay stored.
type Indexer struct {
	embedder     embedding.Embedder
	store        vectorstore.Store
	workers      int
	batchSize    int
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithWorkers bounds indexing concurrency. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithBatchSize sets how many chunks share one embedding call. Values below
// 1 are ignored.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithStoreTimeout sets the deadline for each vector store write.
func WithStoreTimeout(d time.Duration) Option {
	return func(ix *Indexer) { ix.storeTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

func New(e embedding.Embedder, s vectorstore.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder:  e,
		store:     s,
		workers:   DefaultWorkers,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds chunks in batches and stores each one tagged with md. It returns the
// number of records committed. On failure the error is an *errs.Error of an
// infrastructure kind whose Committed field repeats that count; nothing
// already stored is rolled back.
func (ix *Indexer) Index(ctx context.Context, chunks []string, md vectorstore.Metadata) (int, error) {
	if md.MaterialID <= 0 {
		return 0, errs.Inputf("material_id must be a positive integer, got %d", md.MaterialID)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	var committed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for start := 0; start < len(chunks); start += ix.batchSize {
		if gctx.Err() != nil {
			break
		}
		batch := chunks[start:min(start+ix.batchSize, len(chunks))]
		g.Go(func() error {
			return ix.indexBatch(gctx, start, batch, md, &committed)
		})
	}

	err := g.Wait()
	n := int(committed.Load())
	if err == nil && n < len(chunks) {
		// Cancelled by the caller before every chunk was scheduled.
		err = ctx.Err()
	}
	if err != nil {
		e := errs.FromService(stageOf(err), err)
		e.MaterialID = md.MaterialID
		e.Committed = n
		ix.logger.WarnContext(ctx, "indexing incomplete",
			"material_id", md.MaterialID, "committed", n, "total", len(chunks), "error", err)
		return n, e
	}

	ix.logger.DebugContext(ctx, "indexed chunks",
		"material_id", md.MaterialID, "chunks", n, "model", ix.embedder.ModelID())
	return n, nil
}

// indexBatch embeds batch with one call and stores its records in order.
// offset is the index of batch[0] within the input, for error messages.
func (ix *Indexer) indexBatch(ctx context.Context, offset int, batch []string, md vectorstore.Metadata, committed *atomic.Int64) error {
	vecs, err := ix.embedder.EmbedDocuments(ctx, batch)
	if err != nil {
		return fmt.Errorf("chunks %d-%d: %w", offset, offset+len(batch)-1,
			&stageError{stage: errs.StageEmbed, err: err})
	}
	if len(vecs) != len(batch) {
		return &stageError{stage: errs.StageEmbed, err: &embedding.ErrCountMismatch{Want: len(batch), Got: len(vecs)}}
	}

	for i, chunk := range batch {
		if err := ix.storeOne(ctx, chunk, vecs[i], md); err != nil {
			return fmt.Errorf("chunk %d: %w", offset+i, err)
		}
		committed.Add(1)
	}
	return nil
}

func (ix *Indexer) storeOne(ctx context.Context, chunk string, vec []float32, md vectorstore.Metadata) error {
	if ix.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.storeTimeout)
		defer cancel()
	}

	rec := vectorstore.Record{
		ID:        uuid.New(),
		Content:   chunk,
		Metadata:  md,
		Embedding: vec,
		CreatedAt: ix.now(),
	}
	if err := ix.store.Add(ctx, rec); err != nil {
		return &stageError{stage: errs.StageStore, err: err}
	}
	return nil
}

// stageError records which external service failed.
type stageError struct {
	stage errs.Stage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) errs.Stage {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return errs.StageEmbed
}
