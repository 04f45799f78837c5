// Package errs defines the error taxonomy shared by the ingestion and
// generation pipelines. Every failure surfaced to a caller is an *Error
// carrying enough context (stage, material, offending index) to classify
// and diagnose it.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a specific failure condition.
type Kind string

const (
	KindInput               Kind = "InputError"
	KindEmptyContext        Kind = "EmptyContext"
	KindInsufficientContext Kind = "InsufficientContext"
	KindParse               Kind = "ParseError"
	KindSchemaViolation     Kind = "SchemaViolation"
	KindServiceUnavailable  Kind = "ServiceUnavailable"
	KindServiceTimeout      Kind = "ServiceTimeout"
)

// Category groups kinds into the four families callers act on.
type Category string

const (
	CategoryInput          Category = "InputError"
	CategoryRetrieval      Category = "RetrievalError"
	CategoryModelOutput    Category = "ModelOutputError"
	CategoryInfrastructure Category = "InfrastructureError"
)

// Category returns the family this kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindEmptyContext, KindInsufficientContext:
		return CategoryRetrieval
	case KindParse, KindSchemaViolation:
		return CategoryModelOutput
	case KindServiceUnavailable, KindServiceTimeout:
		return CategoryInfrastructure
	default:
		return CategoryInput
	}
}

// ClientCorrectable reports whether the caller can fix the condition by
// changing its request (HTTP 400) as opposed to a server-side failure.
func (k Kind) ClientCorrectable() bool {
	c := k.Category()
	return c == CategoryInput || c == CategoryRetrieval
}

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageRequest  Stage = "request"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageStore    Stage = "store"
	StageRetrieve Stage = "retrieve"
	StageValidate Stage = "validate-context"
	StagePrompt   Stage = "build-prompt"
	StageModel    Stage = "invoke-model"
	StageParse    Stage = "parse"
)

// NoIndex marks errors that do not refer to a specific element.
const NoIndex = -1

// Error is the concrete error type for every classified failure.
type Error struct {
	Kind       Kind
	Stage      Stage
	MaterialID int64

	// Index is the offending element's position in the model output, or
	// NoIndex when not applicable.
	Index int

	// Rule names the validation rule that was broken (SchemaViolation only).
	Rule string

	// Committed is the number of records stored before an ingestion failure.
	Committed int

	Msg string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		fmt.Fprintf(&b, " at %s", e.Stage)
	}
	if e.MaterialID != 0 {
		fmt.Fprintf(&b, " (material %d)", e.MaterialID)
	}
	if e.Index != NoIndex {
		fmt.Fprintf(&b, " [question %d]", e.Index)
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, " rule %q", e.Rule)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error without an index.
func New(kind Kind, stage Stage, msg string) *Error {
	return &Error{Kind: kind, Stage: stage, Index: NoIndex, Msg: msg}
}

// Wrap creates an *Error wrapping err.
func Wrap(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Index: NoIndex, Err: err}
}

// Inputf creates an InputError at the request stage.
func Inputf(format string, args ...any) *Error {
	return New(KindInput, StageRequest, fmt.Sprintf(format, args...))
}

// Violation creates a SchemaViolation for the element at index.
func Violation(index int, rule, msg string) *Error {
	return &Error{Kind: KindSchemaViolation, Stage: StageParse, Index: index, Rule: rule, Msg: msg}
}

// WithMaterial sets the material id and returns e for chaining.
func (e *Error) WithMaterial(id int64) *Error {
	e.MaterialID = id
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CategoryOf returns the category of err. Unclassified errors are treated
// as infrastructure failures.
func CategoryOf(err error) Category {
	if e, ok := As(err); ok {
		return e.Kind.Category()
	}
	return CategoryInfrastructure
}
