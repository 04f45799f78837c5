package examgen

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/retriever"
	"github.com/abhisek/examgen/internal/store"
)

// Purpose labels generation calls in the LLM event log.
const Purpose = "exam-generation"

// Generator produces exam questions for a request.
type Generator interface {
	Generate(ctx context.Context, req ExamRequest) ([]ExamQuestion, error)
}

// ContextRetriever fetches material-scoped chunks relevant to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, materialID int64, query string, opts retriever.Options) ([]retriever.Chunk, error)
}

// State is a step of a single generation run.
type State string

const (
	StatePending          State = "pending"
	StateRetrieved        State = "retrieved"
	StateContextValidated State = "context-validated"
	StatePromptBuilt      State = "prompt-built"
	StateModelInvoked     State = "model-invoked"
	StateParsed           State = "parsed"
	StateFailed           State = "failed"
)

// Transition is reported to observers on every state change.
type Transition struct {
	MaterialID int64
	From, To   State
	Err        error // set when To is StateFailed
	Elapsed    time.Duration
}

// Observer receives the transitions of each run, in order.
type Observer func(ctx context.Context, t Transition)

// Orchestrator runs retrieve, validate context, build prompt, invoke model
// and parse, in that order. It never retries; see RetryGenerator.
type Orchestrator struct {
	retriever ContextRetriever
	provider  llm.Provider
	config    Config
	events    store.EventRepo
	observers []Observer
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers fn to receive state transitions.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// WithEventRepo records every generation request in the event log.
func WithEventRepo(repo store.EventRepo) Option {
	return func(o *Orchestrator) { o.events = repo }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(r ContextRetriever, p llm.Provider, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		retriever: r,
		provider:  p,
		config:    cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate runs the pipeline for req. Every failure is an *errs.Error
// carrying the failing stage and req.MaterialID.
func (o *Orchestrator) Generate(ctx context.Context, req ExamRequest) ([]ExamQuestion, error) {
	r := &run{o: o, materialID: req.MaterialID, state: StatePending, start: time.Now()}

	questions, err := o.generate(ctx, r, req)
	if err != nil {
		err = r.fail(ctx, err)
	}
	o.record(ctx, req, questions, err, time.Since(r.start))
	return questions, err
}

func (o *Orchestrator) generate(ctx context.Context, r *run, req ExamRequest) ([]ExamQuestion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	chunks, err := o.retriever.Retrieve(ctx, req.MaterialID, req.Instruction, retriever.Options{
		K:              o.config.K,
		ScoreThreshold: o.config.ScoreThreshold,
	})
	if err != nil {
		return nil, errs.FromService(errs.StageRetrieve, err)
	}
	r.advance(ctx, StateRetrieved)

	text, err := ValidateContext(chunks, o.config.MinContextChars)
	if err != nil {
		return nil, err
	}
	r.advance(ctx, StateContextValidated)

	prompt := BuildPrompt(text, req.Instruction, req.MaterialID)
	r.advance(ctx, StatePromptBuilt)

	raw, err := o.invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}
	r.advance(ctx, StateModelInvoked)

	validators := append(DefaultValidators(), MaterialValidator{MaterialID: req.MaterialID})
	questions, err := NewParser(validators...).Parse(raw)
	if err != nil {
		return nil, err
	}
	r.advance(ctx, StateParsed)
	return questions, nil
}

func (o *Orchestrator) invoke(ctx context.Context, prompt string) (string, error) {
	ctx = llm.WithPurpose(ctx, Purpose)
	if o.config.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.ModelTimeout)
		defer cancel()
	}

	resp, err := o.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	})
	if err != nil {
		return "", classifyModelError(err)
	}
	return resp.Text, nil
}

// classifyModelError separates unusable output from transport failures.
func classifyModelError(err error) error {
	var maxTok *llm.ErrMaxTokensExceeded
	var invalid *llm.ErrInvalidResponse
	if errors.As(err, &maxTok) || errors.As(err, &invalid) {
		return errs.Wrap(errs.KindParse, errs.StageModel, err)
	}
	return errs.FromService(errs.StageModel, err)
}

func (o *Orchestrator) record(ctx context.Context, req ExamRequest, questions []ExamQuestion, err error, elapsed time.Duration) {
	data := store.GenerationEventData{
		MaterialID:  req.MaterialID,
		Instruction: req.Instruction,
		Questions:   len(questions),
		Success:     err == nil,
		LatencyMs:   elapsed.Milliseconds(),
	}
	if e, ok := errs.As(err); ok {
		data.Stage = string(e.Stage)
		data.ErrorKind = string(e.Kind)
		data.ErrorMessage = e.Error()
	} else if err != nil {
		data.ErrorMessage = err.Error()
	}

	if err != nil {
		o.logger.WarnContext(ctx, "exam generation failed",
			"material_id", req.MaterialID, "stage", data.Stage, "kind", data.ErrorKind, "error", err)
	} else {
		o.logger.InfoContext(ctx, "exam generated",
			"material_id", req.MaterialID, "questions", len(questions), "latency_ms", data.LatencyMs)
	}

	if o.events == nil {
		return
	}
	if aerr := o.events.AppendGenerationEvent(context.WithoutCancel(ctx), data); aerr != nil {
		o.logger.WarnContext(ctx, "failed to record generation event", "error", aerr)
	}
}

// run tracks the state of one Generate call.
type run struct {
	o          *Orchestrator
	materialID int64
	state      State
	start      time.Time
}

func (r *run) advance(ctx context.Context, to State) {
	t := Transition{MaterialID: r.materialID, From: r.state, To: to, Elapsed: time.Since(r.start)}
	r.state = to
	for _, fn := range r.o.observers {
		fn(ctx, t)
	}
}

// fail moves the run to StateFailed and fills in the material id and, for
// unclassified errors, the stage the run was in.
func (r *run) fail(ctx context.Context, err error) error {
	e, ok := errs.As(err)
	if !ok {
		e = errs.FromService(stageAfter(r.state), err)
	}
	if e.MaterialID == 0 {
		e.MaterialID = r.materialID
	}

	t := Transition{MaterialID: r.materialID, From: r.state, To: StateFailed, Err: e, Elapsed: time.Since(r.start)}
	r.state = StateFailed
	for _, fn := range r.o.observers {
		fn(ctx, t)
	}
	return e
}

// stageAfter names the pipeline stage that runs from state s.
func stageAfter(s State) errs.Stage {
	switch s {
	case StatePending:
		return errs.StageRetrieve
	case StateRetrieved:
		return errs.StageValidate
	case StateContextValidated:
		return errs.StagePrompt
	case StatePromptBuilt:
		return errs.StageModel
	default:
		return errs.StageParse
	}
}
