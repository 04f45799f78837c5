package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var llmEventColumns = columnNames(LLMRequestEventsColumns)

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	err = r.exec(ctx, builder.Insert(LLMRequestEventsTable.Name).
		Columns(llmEventColumns[1:]...).
		Values(seqNum, toMillis(time.Now()), data.Provider, data.Model, data.Purpose,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success,
			data.ErrorMessage, data.RequestBody, data.ResponseBody))
	if err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}

	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error) {
	var records []LLMEventRecord
	err := r.query(ctx, selectEvents(LLMRequestEventsTable.Name, llmEventColumns, opts),
		func(rows entsql.ColumnScanner) error {
			rec, err := scanLLMEvent(rows)
			if err != nil {
				return fmt.Errorf("scan LLM event: %w", err)
			}
			records = append(records, *rec)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	return records, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error) {
	var rec *LLMEventRecord
	q := builder.Select(llmEventColumns...).
		From(builder.Table(LLMRequestEventsTable.Name)).
		Where(entsql.EQ("id", id))
	err := r.query(ctx, q, func(rows entsql.ColumnScanner) error {
		var err error
		rec, err = scanLLMEvent(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	// rec stays nil when no row matched.
	return rec, nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	q := builder.Select("purpose", entsql.Count("*"), entsql.Sum("input_tokens"),
		entsql.Sum("output_tokens"), "CAST(AVG(latency_ms) AS INTEGER)").
		From(builder.Table(LLMRequestEventsTable.Name)).
		GroupBy("purpose").
		OrderBy("purpose")

	var stats []PurposeUsage
	err := r.query(ctx, q, func(rows entsql.ColumnScanner) error {
		var u PurposeUsage
		if err := rows.Scan(&u.Purpose, &u.Calls, &u.InputTokens, &u.OutputTokens, &u.AvgLatencyMs); err != nil {
			return fmt.Errorf("scan usage by purpose: %w", err)
		}
		stats = append(stats, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query usage by purpose: %w", err)
	}
	return stats, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	q := builder.Select("model", entsql.Count("*"), entsql.Sum("input_tokens"), entsql.Sum("output_tokens")).
		From(builder.Table(LLMRequestEventsTable.Name)).
		GroupBy("model").
		OrderBy("model")

	var stats []ModelUsage
	err := r.query(ctx, q, func(rows entsql.ColumnScanner) error {
		var u ModelUsage
		if err := rows.Scan(&u.Model, &u.Calls, &u.InputTokens, &u.OutputTokens); err != nil {
			return fmt.Errorf("scan usage by model: %w", err)
		}
		stats = append(stats, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	return stats, nil
}

func scanLLMEvent(rows entsql.ColumnScanner) (*LLMEventRecord, error) {
	var (
		rec LLMEventRecord
		ts  int64
	)
	err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.Provider, &rec.Model, &rec.Purpose,
		&rec.InputTokens, &rec.OutputTokens, &rec.LatencyMs, &rec.Success,
		&rec.ErrorMessage, &rec.RequestBody, &rec.ResponseBody)
	if err != nil {
		return nil, err
	}
	rec.Timestamp = fromMillis(ts)
	return &rec, nil
}
