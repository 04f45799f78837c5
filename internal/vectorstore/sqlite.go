package vectorstore

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/google/uuid"
)

var (
	// ChunksColumns holds the columns for the "chunks" table.
	ChunksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "material_id", Type: field.TypeInt64},
		{Name: "course_id", Type: field.TypeInt64, Default: 0},
		{Name: "chapter_id", Type: field.TypeInt64, Default: 0},
		{Name: "source", Type: field.TypeString, Default: ""},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "embedding", Type: field.TypeBytes},
		{Name: "created_at", Type: field.TypeInt64},
	}
	// ChunksTable holds the schema information for the "chunks" table.
	ChunksTable = &schema.Table{
		Name:       "chunks",
		Columns:    ChunksColumns,
		PrimaryKey: []*schema.Column{ChunksColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "chunk_material_id",
				Unique:  false,
				Columns: []*schema.Column{ChunksColumns[1]},
			},
		},
	}
)

var chunkColumns = []string{"id", "material_id", "course_id", "chapter_id", "source", "content", "embedding", "created_at"}

// SQLiteStore keeps records in a chunks table next to the event log.
// Embeddings are stored as float32 blobs and ranked in process after the
// material filter has been applied in SQL.
type SQLiteStore struct {
	drv     *entsql.Driver
	builder *entsql.DialectBuilder
}

// NewSQLite migrates the chunks table on drv.
func NewSQLite(ctx context.Context, drv *entsql.Driver) (*SQLiteStore, error) {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, ChunksTable); err != nil {
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	return &SQLiteStore{drv: drv, builder: entsql.Dialect(dialect.SQLite)}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query, args := s.builder.Insert(ChunksTable.Name).
		Columns(chunkColumns...).
		Values(rec.ID.String(), rec.Metadata.MaterialID, rec.Metadata.CourseID, rec.Metadata.ChapterID,
			rec.Metadata.Source, rec.Content, encodeEmbedding(rec.Embedding), rec.CreatedAt.UnixMilli()).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert chunk %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, materialID int64, query []float32, k int) ([]Scored, error) {
	q, args := s.builder.Select(chunkColumns...).
		From(s.builder.Table(ChunksTable.Name)).
		Where(entsql.EQ("material_id", materialID)).
		OrderBy("rowid").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var hits []Scored
	for rows.Next() {
		var (
			rec     Record
			id      string
			blob    []byte
			created int64
		)
		err := rows.Scan(&id, &rec.Metadata.MaterialID, &rec.Metadata.CourseID, &rec.Metadata.ChapterID,
			&rec.Metadata.Source, &rec.Content, &blob, &created)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("chunk id %q: %w", id, err)
		}
		if rec.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		rec.CreatedAt = time.UnixMilli(created)

		score, err := cosine(query, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		hits = append(hits, Scored{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return topK(hits, k), nil
}

func (s *SQLiteStore) DeleteMaterial(ctx context.Context, materialID int64) (int, error) {
	query, args := s.builder.Delete(ChunksTable.Name).
		Where(entsql.EQ("material_id", materialID)).
		Query()
	var res entsql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("delete chunks of material %d: %w", materialID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Stats(ctx context.Context) ([]MaterialStats, error) {
	query, args := s.builder.Select("material_id", entsql.Count("*"), entsql.Max("created_at")).
		From(s.builder.Table(ChunksTable.Name)).
		GroupBy("material_id").
		OrderBy("material_id").
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query chunk stats: %w", err)
	}
	defer rows.Close()

	var out []MaterialStats
	for rows.Next() {
		var (
			st   MaterialStats
			last int64
		)
		if err := rows.Scan(&st.MaterialID, &st.Chunks, &last); err != nil {
			return nil, fmt.Errorf("scan chunk stats: %w", err)
		}
		st.LastAdded = time.UnixMilli(last)
		out = append(out, st)
	}
	return out, rows.Err()
}
