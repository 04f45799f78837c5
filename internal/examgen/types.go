// Package examgen turns retrieved course material into validated
// multiple-choice exam questions.
package examgen

import (
	"strings"

	"github.com/abhisek/examgen/internal/errs"
)

// Difficulty is the question's self-assessed difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TaxonomyLevel is the Bloom's taxonomy level of a question. Only the two
// highest cognitive levels are generated.
type TaxonomyLevel string

const (
	TaxonomyC5 TaxonomyLevel = "C5" // evaluate
	TaxonomyC6 TaxonomyLevel = "C6" // create
)

// Answer is one option of a multiple-choice question.
type Answer struct {
	// Label is a single uppercase letter; labels run A, B, C... in order.
	Label     string `json:"label"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// ExamQuestion is a generated multiple-choice question. Exactly one answer
// is correct.
type ExamQuestion struct {
	MaterialID    int64         `json:"material_id"`
	Content       string        `json:"content"`
	Difficulty    Difficulty    `json:"difficulty"`
	TaxonomyLevel TaxonomyLevel `json:"taxonomy_level"`
	Answers       []Answer      `json:"answers"`
}

// CorrectAnswer returns the answer marked correct, or nil.
func (q *ExamQuestion) CorrectAnswer() *Answer {
	for i := range q.Answers {
		if q.Answers[i].IsCorrect {
			return &q.Answers[i]
		}
	}
	return nil
}

// ExamRequest asks for questions about one material.
type ExamRequest struct {
	MaterialID  int64  `json:"material_id"`
	Instruction string `json:"instruction"`
}

// Validate reports malformed requests as InputError.
func (r ExamRequest) Validate() error {
	if r.MaterialID <= 0 {
		return errs.Inputf("material_id must be a positive integer, got %d", r.MaterialID).WithMaterial(r.MaterialID)
	}
	if strings.TrimSpace(r.Instruction) == "" {
		return errs.Inputf("instruction must not be empty").WithMaterial(r.MaterialID)
	}
	return nil
}
