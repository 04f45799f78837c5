package examgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/abhisek/examgen/internal/errs"
)

// Parser decodes and validates raw model output. It never repairs or
// coerces: the first broken rule fails the whole response.
type Parser struct {
	validators []Validator
}

// NewParser creates a Parser running the given semantic validators after
// the schema check. With no validators it uses DefaultValidators.
func NewParser(validators ...Validator) *Parser {
	if len(validators) == 0 {
		validators = DefaultValidators()
	}
	return &Parser{validators: validators}
}

// Parse parses raw with the default validators.
func Parse(raw string) ([]ExamQuestion, error) {
	return NewParser().Parse(raw)
}

// Parse decodes raw as a JSON array of questions. Malformed JSON, a
// non-array value, or a model refusal object is a ParseError; a question
// that breaks a rule is a SchemaViolation naming its index and the rule.
func (p *Parser) Parse(raw string) ([]ExamQuestion, error) {
	body := stripCodeFence(raw)

	// Numbers stay json.Number so ids above 2^53 survive the round trip
	// through the schema check and re-decoding.
	var top any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&top); err != nil {
		return nil, errs.Wrap(errs.KindParse, errs.StageParse, fmt.Errorf("model output is not valid JSON: %w", err))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errs.New(errs.KindParse, errs.StageParse, "model output has trailing data after the JSON value")
	}

	items, ok := top.([]any)
	if !ok {
		if obj, isObj := top.(map[string]any); isObj {
			if reason, has := obj["error"]; has {
				return nil, errs.New(errs.KindParse, errs.StageParse, fmt.Sprintf("model declined: %v", reason))
			}
		}
		return nil, errs.New(errs.KindParse, errs.StageParse, fmt.Sprintf("model output is a JSON %s, want an array", jsonType(top)))
	}
	if len(items) == 0 {
		return nil, errs.Violation(errs.NoIndex, RuleNonEmpty, "model returned an empty array")
	}

	compiled, err := compiledQuestionSchema()
	if err != nil {
		return nil, fmt.Errorf("compile question schema: %w", err)
	}

	questions := make([]ExamQuestion, len(items))
	for i, item := range items {
		if err := compiled.Validate(item); err != nil {
			return nil, schemaViolation(i, err)
		}

		// The element already matched the schema, so it decodes cleanly.
		b, err := json.Marshal(item)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, errs.StageParse, err)
		}
		if err := json.Unmarshal(b, &questions[i]); err != nil {
			return nil, errs.Wrap(errs.KindParse, errs.StageParse, fmt.Errorf("question %d: %w", i, err))
		}

		for _, v := range p.validators {
			if err := v.Validate(&questions[i]); err != nil {
				return nil, errs.Violation(i, v.Name(), err.Error())
			}
		}
	}
	return questions, nil
}

// stripCodeFence removes a Markdown code fence wrapped around the whole
// output, such as ```json ... ```.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	inner := strings.TrimSpace(s[nl+1:])
	inner, ok := strings.CutSuffix(inner, "```")
	if !ok {
		return s
	}
	return strings.TrimSpace(inner)
}

// schemaViolation converts a jsonschema failure into a SchemaViolation
// naming the first broken keyword.
func schemaViolation(index int, err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return errs.Violation(index, RuleSchema, err.Error())
	}
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}

	loc := "/" + strings.Join(verr.InstanceLocation, "/")
	rule := RuleSchema
	msg := fmt.Sprintf("invalid value at %s", loc)

	switch k := verr.ErrorKind.(type) {
	case *kind.Required:
		rule = RuleRequired
		msg = fmt.Sprintf("missing %s at %s", strings.Join(k.Missing, ", "), loc)
	case *kind.Type:
		rule = RuleType
		msg = fmt.Sprintf("%s must be %s, got %s", loc, strings.Join(k.Want, " or "), k.Got)
	case *kind.Enum, *kind.Const:
		rule = RuleEnum
		msg = fmt.Sprintf("%s is not an allowed value", loc)
	case *kind.MinLength:
		rule = RuleEmptyField
		msg = fmt.Sprintf("%s must not be empty", loc)
	case *kind.MinItems:
		rule = RuleAnswersNonEmpty
		msg = fmt.Sprintf("%s must contain at least %d item(s)", loc, k.Want)
	case *kind.Pattern:
		rule = RuleLabelFormat
		msg = fmt.Sprintf("%s must be a single uppercase letter", loc)
	}
	return errs.Violation(index, rule, msg)
}

func jsonType(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
