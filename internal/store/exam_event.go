package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var (
	ingestEventColumns     = columnNames(IngestEventsColumns)
	generationEventColumns = columnNames(GenerationEventsColumns)
)

func (r *eventRepo) AppendIngestEvent(ctx context.Context, data IngestEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	err = r.exec(ctx, builder.Insert(IngestEventsTable.Name).
		Columns(ingestEventColumns[1:]...).
		Values(seqNum, toMillis(time.Now()), data.MaterialID, data.CourseID, data.ChapterID,
			data.Source, data.Chunks, data.Success, data.ErrorKind, data.ErrorMessage))
	if err != nil {
		return fmt.Errorf("save ingest event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryIngestEvents(ctx context.Context, opts QueryOpts) ([]IngestEventRecord, error) {
	var preds []*entsql.Predicate
	if opts.MaterialID > 0 {
		preds = append(preds, entsql.EQ("material_id", opts.MaterialID))
	}

	var records []IngestEventRecord
	err := r.query(ctx, selectEvents(IngestEventsTable.Name, ingestEventColumns, opts, preds...),
		func(rows entsql.ColumnScanner) error {
			var (
				rec IngestEventRecord
				ts  int64
			)
			if err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.MaterialID, &rec.CourseID,
				&rec.ChapterID, &rec.Source, &rec.Chunks, &rec.Success, &rec.ErrorKind, &rec.ErrorMessage); err != nil {
				return fmt.Errorf("scan ingest event: %w", err)
			}
			rec.Timestamp = fromMillis(ts)
			records = append(records, rec)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("query ingest events: %w", err)
	}
	return records, nil
}

func (r *eventRepo) AppendGenerationEvent(ctx context.Context, data GenerationEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	err = r.exec(ctx, builder.Insert(GenerationEventsTable.Name).
		Columns(generationEventColumns[1:]...).
		Values(seqNum, toMillis(time.Now()), data.MaterialID, data.Instruction, data.Questions,
			data.Success, data.Stage, data.ErrorKind, data.ErrorMessage, data.LatencyMs))
	if err != nil {
		return fmt.Errorf("save generation event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryGenerationEvents(ctx context.Context, opts QueryOpts) ([]GenerationEventRecord, error) {
	var preds []*entsql.Predicate
	if opts.MaterialID > 0 {
		preds = append(preds, entsql.EQ("material_id", opts.MaterialID))
	}

	var records []GenerationEventRecord
	err := r.query(ctx, selectEvents(GenerationEventsTable.Name, generationEventColumns, opts, preds...),
		func(rows entsql.ColumnScanner) error {
			var (
				rec GenerationEventRecord
				ts  int64
			)
			if err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.MaterialID, &rec.Instruction,
				&rec.Questions, &rec.Success, &rec.Stage, &rec.ErrorKind, &rec.ErrorMessage, &rec.LatencyMs); err != nil {
				return fmt.Errorf("scan generation event: %w", err)
			}
			rec.Timestamp = fromMillis(ts)
			records = append(records, rec)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("query generation events: %w", err)
	}
	return records, nil
}

// MaterialActivity merges per-material ingest and generation totals,
// ordered by material id. Only successful ingests count toward
// ChunksIngested.
func (r *eventRepo) MaterialActivity(ctx context.Context) ([]MaterialActivity, error) {
	byMaterial := make(map[int64]*MaterialActivity)
	entry := func(id int64) *MaterialActivity {
		a, ok := byMaterial[id]
		if !ok {
			a = &MaterialActivity{MaterialID: id}
			byMaterial[id] = a
		}
		return a
	}

	ingests := builder.Select("material_id", entsql.Count("*"),
		"SUM(CASE WHEN success THEN chunks ELSE 0 END)").
		From(builder.Table(IngestEventsTable.Name)).
		GroupBy("material_id")
	err := r.query(ctx, ingests, func(rows entsql.ColumnScanner) error {
		var (
			id            int64
			count, chunks int
		)
		if err := rows.Scan(&id, &count, &chunks); err != nil {
			return fmt.Errorf("scan ingest activity: %w", err)
		}
		a := entry(id)
		a.Ingests, a.ChunksIngested = count, chunks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query ingest activity: %w", err)
	}

	generations := builder.Select("material_id", entsql.Count("*"),
		"SUM(CASE WHEN success THEN 0 ELSE 1 END)", entsql.Sum("questions")).
		From(builder.Table(GenerationEventsTable.Name)).
		GroupBy("material_id")
	err = r.query(ctx, generations, func(rows entsql.ColumnScanner) error {
		var (
			id                       int64
			count, failed, questions int
		)
		if err := rows.Scan(&id, &count, &failed, &questions); err != nil {
			return fmt.Errorf("scan generation activity: %w", err)
		}
		a := entry(id)
		a.Generations, a.FailedGenerations, a.QuestionsServed = count, failed, questions
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query generation activity: %w", err)
	}

	out := make([]MaterialActivity, 0, len(byMaterial))
	for _, a := range byMaterial {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b MaterialActivity) int {
		return cmp.Compare(a.MaterialID, b.MaterialID)
	})
	return out, nil
}
