package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit      int       // max results (0 = unlimited)
	After      int64     // sequence > After
	Before     int64     // sequence < Before
	From       time.Time // timestamp >= From
	To         time.Time // timestamp <= To
	MaterialID int64     // ingest and generation events only (0 = any)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM token usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// IngestEventData records one material ingestion attempt.
type IngestEventData struct {
	MaterialID   int64
	CourseID     int64
	ChapterID    int64
	Source       string
	Chunks       int
	Success      bool
	ErrorKind    string
	ErrorMessage string
}

// IngestEventRecord is a stored ingestion event.
type IngestEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	IngestEventData
}

// GenerationEventData records one exam generation request.
type GenerationEventData struct {
	MaterialID   int64
	Instruction  string
	Questions    int
	Success      bool
	Stage        string
	ErrorKind    string
	ErrorMessage string
	LatencyMs    int64
}

// GenerationEventRecord is a stored generation event.
type GenerationEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	GenerationEventData
}

// MaterialActivity summarizes ingestion and generation for one material.
type MaterialActivity struct {
	MaterialID        int64
	Ingests           int
	ChunksIngested    int
	Generations       int
	FailedGenerations int
	QuestionsServed   int
}

// EventRepo provides append and query access to the event log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns a single LLM event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates token usage per purpose label.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendIngestEvent records a material ingestion attempt.
	AppendIngestEvent(ctx context.Context, data IngestEventData) error

	// QueryIngestEvents returns ingestion events, newest first.
	QueryIngestEvents(ctx context.Context, opts QueryOpts) ([]IngestEventRecord, error)

	// AppendGenerationEvent records an exam generation request.
	AppendGenerationEvent(ctx context.Context, data GenerationEventData) error

	// QueryGenerationEvents returns generation events, newest first.
	QueryGenerationEvents(ctx context.Context, opts QueryOpts) ([]GenerationEventRecord, error)

	// MaterialActivity summarizes events per material, ordered by id.
	MaterialActivity(ctx context.Context) ([]MaterialActivity, error)
}
