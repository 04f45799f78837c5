package examgen

import (
	"fmt"
	"strings"
)

// Rule names reported in SchemaViolation errors.
const (
	RuleNonEmpty          = "non-empty"
	RuleRequired          = "required"
	RuleType              = "type"
	RuleEnum              = "enum"
	RuleEmptyField        = "empty-field"
	RuleAnswersNonEmpty   = "answers-non-empty"
	RuleLabelFormat       = "label-format"
	RuleSchema            = "schema"
	RuleExactlyOneCorrect = "exactly-one-correct"
	RuleSequentialLabels  = "sequential-labels"
	RuleMaterialID        = "material-id"
)

// Validator checks a decoded question after it has passed the JSON schema.
// Implementations are stateless and safe for concurrent use.
type Validator interface {
	// Name is the rule reported when the check fails.
	Name() string

	// Validate returns nil if q passes.
	Validate(q *ExamQuestion) error
}

// DefaultValidators returns the semantic checks every question must pass.
func DefaultValidators() []Validator {
	return []Validator{
		ExactlyOneCorrectValidator{},
		SequentialLabelsValidator{},
	}
}

// ExactlyOneCorrectValidator requires a single answer with is_correct set.
type ExactlyOneCorrectValidator struct{}

func (ExactlyOneCorrectValidator) Name() string { return RuleExactlyOneCorrect }

func (ExactlyOneCorrectValidator) Validate(q *ExamQuestion) error {
	var correct []string
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct = append(correct, a.Label)
		}
	}
	if len(correct) != 1 {
		if len(correct) == 0 {
			return fmt.Errorf("no answer is marked correct")
		}
		return fmt.Errorf("%d answers are marked correct (%s)", len(correct), strings.Join(correct, ", "))
	}
	return nil
}

// SequentialLabelsValidator requires labels A, B, C... with no gaps.
type SequentialLabelsValidator struct{}

func (SequentialLabelsValidator) Name() string { return RuleSequentialLabels }

func (SequentialLabelsValidator) Validate(q *ExamQuestion) error {
	for i, a := range q.Answers {
		want := string(rune('A' + i))
		if a.Label != want {
			return fmt.Errorf("answer %d has label %q, want %q", i, a.Label, want)
		}
	}
	return nil
}

// MaterialValidator requires questions to carry the requested material id.
type MaterialValidator struct {
	MaterialID int64
}

func (MaterialValidator) Name() string { return RuleMaterialID }

func (v MaterialValidator) Validate(q *ExamQuestion) error {
	if q.MaterialID != v.MaterialID {
		return fmt.Errorf("question has material_id %d, requested %d", q.MaterialID, v.MaterialID)
	}
	return nil
}
