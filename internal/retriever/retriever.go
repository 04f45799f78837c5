// Package retriever answers similarity queries restricted to one material.
package retriever

import (
	"context"
	"log/slog"
	"time"

	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/vectorstore"
)

// DefaultK is the number of chunks retrieved when Options.K is unset.
const DefaultK = 6

// Options tunes a single retrieval.
type Options struct {
	K int

	// ScoreThreshold drops results scoring below it. Nil keeps everything.
	ScoreThreshold *float64
}

// Chunk is a retrieved piece of material.
type Chunk struct {
	Content  string
	Metadata vectorstore.Metadata
	Score    float64
}

// Retriever embeds the query and searches the store. The material filter is
// applied inside the store before ranking.
type Retriever struct {
	embedder     embedding.Embedder
	store        vectorstore.Store
	storeTimeout time.Duration
	logger       *slog.Logger
}

func New(e embedding.Embedder, s vectorstore.Store, storeTimeout time.Duration, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: e, store: s, storeTimeout: storeTimeout, logger: logger}
}

// Retrieve returns up to opts.K chunks of materialID most similar to query,
// highest score first. Errors are *errs.Error at the retrieve stage.
func (r *Retriever) Retrieve(ctx context.Context, materialID int64, query string, opts Options) ([]Chunk, error) {
	if materialID <= 0 {
		return nil, errs.Inputf("material_id must be a positive integer, got %d", materialID).WithMaterial(materialID)
	}
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errs.FromService(errs.StageRetrieve, err).WithMaterial(materialID)
	}

	searchCtx := ctx
	if r.storeTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, r.storeTimeout)
		defer cancel()
	}
	hits, err := r.store.Search(searchCtx, materialID, vec, k)
	if err != nil {
		return nil, errs.FromService(errs.StageRetrieve, err).WithMaterial(materialID)
	}

	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		if h.Metadata.MaterialID != materialID {
			r.logger.ErrorContext(ctx, "vector store returned chunk of another material",
				"material_id", materialID, "chunk_material_id", h.Metadata.MaterialID, "chunk_id", h.ID)
			continue
		}
		if opts.ScoreThreshold != nil && h.Score < *opts.ScoreThreshold {
			continue
		}
		out = append(out, Chunk{Content: h.Content, Metadata: h.Metadata, Score: h.Score})
	}

	r.logger.DebugContext(ctx, "retrieved context",
		"material_id", materialID, "hits", len(hits), "kept", len(out))
	return out, nil
}
