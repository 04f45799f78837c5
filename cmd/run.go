package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/examgen/internal/chunker"
	"github.com/abhisek/examgen/internal/config"
	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/indexer"
	"github.com/abhisek/examgen/internal/ingest"
	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/retriever"
	"github.com/abhisek/examgen/internal/store"
	"github.com/abhisek/examgen/internal/vectorstore"
)

// deps holds the components shared by the commands. Build them with
// openDeps and release them with Close.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	vectors  vectorstore.Store
	embedder embedding.Embedder
	chunker  *chunker.Chunker
}

// openDeps opens the store and builds the embedding and vector layers.
func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	d := &deps{cfg: cfg, logger: slog.Default(), store: st}

	switch cfg.VectorStore {
	case config.VectorStoreMemory:
		d.vectors = vectorstore.NewMemory()
	default:
		vs, err := vectorstore.NewSQLite(ctx, st.Driver())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		d.vectors = vs
	}

	d.embedder, err = embedding.New(ctx, cfg.EmbeddingConfig())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	d.chunker, err = cfg.NewChunker()
	if err != nil {
		st.Close()
		return nil, err
	}
	return d, nil
}

func (d *deps) Close() error {
	return d.store.Close()
}

func (d *deps) ingester() *ingest.Service {
	ix := indexer.New(d.embedder, d.vectors,
		indexer.WithWorkers(d.cfg.Indexer.Workers),
		indexer.WithBatchSize(d.cfg.Embedding.BatchSize),
		indexer.WithStoreTimeout(d.cfg.Timeouts.VectorStore),
		indexer.WithLogger(d.logger),
	)
	return ingest.New(d.chunker, ix, d.store.EventRepo(), d.logger)
}

// orchestrator builds the generation pipeline. It fails when no LLM
// provider is configured.
func (d *deps) orchestrator(ctx context.Context) (*examgen.Orchestrator, error) {
	events := d.store.EventRepo()
	provider, err := llm.NewProvider(ctx, d.cfg.LLMConfig(), events)
	if err != nil {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	r := retriever.New(d.embedder, d.vectors, d.cfg.Timeouts.VectorStore, d.logger)
	return examgen.NewOrchestrator(r, provider, d.cfg.ExamConfig(),
		examgen.WithEventRepo(events),
		examgen.WithLogger(d.logger),
	), nil
}
