package examgen

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/examgen/internal/errs"
)

// questionJSON renders a question object. Answers are given as
// "label:text:correct" triples.
func questionJSON(material int64, difficulty, taxonomy string, answers ...string) string {
	parts := make([]string, len(answers))
	for i, a := range answers {
		f := strings.SplitN(a, ":", 3)
		parts[i] = fmt.Sprintf(`{"label": %q, "text": %q, "is_correct": %s}`, f[0], f[1], f[2])
	}
	return fmt.Sprintf(`{"material_id": %d, "content": "Which process stores light energy?", "difficulty": %q, "taxonomy_level": %q, "answers": [%s]}`,
		material, difficulty, taxonomy, strings.Join(parts, ", "))
}

var fourAnswers = []string{"A:Respiration:false", "B:Photosynthesis:true", "C:Digestion:false", "D:Osmosis:false"}

func TestParse_Valid(t *testing.T) {
	raw := "[" + questionJSON(1, "hard", "C5", fourAnswers...) + ", " +
		questionJSON(1, "easy", "C6", "A:Yes:true", "B:No:false") + "]"

	qs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("len = %d, want 2", len(qs))
	}
	q := qs[0]
	if q.MaterialID != 1 || q.Difficulty != DifficultyHard || q.TaxonomyLevel != TaxonomyC5 {
		t.Fatalf("question = %+v", q)
	}
	if len(q.Answers) != 4 || q.CorrectAnswer().Label != "B" {
		t.Fatalf("answers = %+v", q.Answers)
	}
	if qs[1].TaxonomyLevel != TaxonomyC6 || len(qs[1].Answers) != 2 {
		t.Fatalf("second question = %+v", qs[1])
	}
}

func TestParse_CodeFence(t *testing.T) {
	raw := "```json\n[" + questionJSON(1, "medium", "C5", fourAnswers...) + "]\n```"
	qs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("len = %d", len(qs))
	}
}

func TestParse_LargeMaterialID(t *testing.T) {
	const id = 9007199254740993 // 2^53 + 1, not representable as float64
	raw := "[" + questionJSON(id, "hard", "C5", fourAnswers...) + "]"

	p := NewParser(append(DefaultValidators(), MaterialValidator{MaterialID: id})...)
	qs, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if qs[0].MaterialID != id {
		t.Errorf("material_id = %d, want %d", qs[0].MaterialID, id)
	}
}

func TestParse_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{"not json", "Here are your questions: 1. What is...", "not valid JSON"},
		{"truncated", `[{"material_id": 1, "content": "x"`, "not valid JSON"},
		{"object", questionJSON(1, "easy", "C5", fourAnswers...), "want an array"},
		{"refusal", `{"error": "context does not cover mitosis"}`, "context does not cover mitosis"},
		{"string", `"[]"`, "JSON string"},
		{"trailing data", `[] []`, "trailing data"},
		{"trailing bracket", "[" + questionJSON(1, "easy", "C5", fourAnswers...) + "]]", "trailing data"},
		{"trailing brace", "[" + questionJSON(1, "easy", "C5", fourAnswers...) + "]}", "trailing data"},
		{"number", `42`, "JSON number"},
		{"empty", "", "not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			e, ok := errs.As(err)
			if !ok || e.Kind != errs.KindParse {
				t.Fatalf("err = %v, want ParseError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	valid := questionJSON(1, "hard", "C5", fourAnswers...)

	tests := []struct {
		name      string
		raw       string
		wantIndex int
		wantRule  string
	}{
		{
			name:      "empty array",
			raw:       "[]",
			wantIndex: errs.NoIndex,
			wantRule:  RuleNonEmpty,
		},
		{
			name:      "no correct answer",
			raw:       "[" + questionJSON(1, "hard", "C5", "A:x:false", "B:y:false") + "]",
			wantIndex: 0,
			wantRule:  RuleExactlyOneCorrect,
		},
		{
			name:      "two correct answers in second question",
			raw:       "[" + valid + ", " + questionJSON(1, "hard", "C5", "A:x:true", "B:y:true", "C:z:false") + "]",
			wantIndex: 1,
			wantRule:  RuleExactlyOneCorrect,
		},
		{
			name:      "label gap",
			raw:       "[" + questionJSON(1, "easy", "C6", "A:x:true", "C:y:false") + "]",
			wantIndex: 0,
			wantRule:  RuleSequentialLabels,
		},
		{
			name:      "labels not starting at A",
			raw:       "[" + questionJSON(1, "easy", "C6", "B:x:true", "C:y:false") + "]",
			wantIndex: 0,
			wantRule:  RuleSequentialLabels,
		},
		{
			name:      "lowercase label",
			raw:       "[" + questionJSON(1, "easy", "C6", "a:x:true", "b:y:false") + "]",
			wantIndex: 0,
			wantRule:  RuleLabelFormat,
		},
		{
			name:      "bad difficulty",
			raw:       "[" + questionJSON(1, "extreme", "C5", fourAnswers...) + "]",
			wantIndex: 0,
			wantRule:  RuleEnum,
		},
		{
			name:      "taxonomy outside C5 and C6",
			raw:       "[" + valid + ", " + questionJSON(1, "easy", "C3", fourAnswers...) + "]",
			wantIndex: 1,
			wantRule:  RuleEnum,
		},
		{
			name:      "no answers",
			raw:       "[" + questionJSON(1, "easy", "C5") + "]",
			wantIndex: 0,
			wantRule:  RuleAnswersNonEmpty,
		},
		{
			name:      "missing content",
			raw:       `[{"material_id": 1, "difficulty": "easy", "taxonomy_level": "C5", "answers": [{"label": "A", "text": "x", "is_correct": true}]}]`,
			wantIndex: 0,
			wantRule:  RuleRequired,
		},
		{
			name:      "is_correct as string",
			raw:       `[{"material_id": 1, "content": "q", "difficulty": "easy", "taxonomy_level": "C5", "answers": [{"label": "A", "text": "x", "is_correct": "true"}]}]`,
			wantIndex: 0,
			wantRule:  RuleType,
		},
		{
			name:      "empty content",
			raw:       `[{"material_id": 1, "content": "", "difficulty": "easy", "taxonomy_level": "C5", "answers": [{"label": "A", "text": "x", "is_correct": true}]}]`,
			wantIndex: 0,
			wantRule:  RuleEmptyField,
		},
		{
			name:      "element is not an object",
			raw:       "[" + valid + `, "question two"]`,
			wantIndex: 1,
			wantRule:  RuleType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			e, ok := errs.As(err)
			if !ok || e.Kind != errs.KindSchemaViolation {
				t.Fatalf("err = %v, want SchemaViolation", err)
			}
			if e.Index != tt.wantIndex {
				t.Errorf("index = %d, want %d", e.Index, tt.wantIndex)
			}
			if e.Rule != tt.wantRule {
				t.Errorf("rule = %q, want %q (%v)", e.Rule, tt.wantRule, err)
			}
		})
	}
}

func TestParse_MaterialValidator(t *testing.T) {
	raw := "[" + questionJSON(2, "hard", "C5", fourAnswers...) + "]"
	p := NewParser(append(DefaultValidators(), MaterialValidator{MaterialID: 1})...)

	_, err := p.Parse(raw)
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindSchemaViolation || e.Rule != RuleMaterialID {
		t.Fatalf("err = %v, want material-id violation", err)
	}

	if _, err := Parse(raw); err != nil {
		t.Fatalf("default parser should not check material: %v", err)
	}
}

func TestParse_RoundTripsOwnOutput(t *testing.T) {
	q := ExamQuestion{
		MaterialID:    5,
		Content:       "Evaluate the claim.",
		Difficulty:    DifficultyMedium,
		TaxonomyLevel: TaxonomyC5,
		Answers: []Answer{
			{Label: "A", Text: "Valid", IsCorrect: true},
			{Label: "B", Text: "Invalid"},
		},
	}
	b, _ := json.Marshal([]ExamQuestion{q})
	got, err := Parse(string(b))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got[0].Content != q.Content || len(got[0].Answers) != 2 {
		t.Fatalf("got %+v", got[0])
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ in, want string }{
		{"[1]", "[1]"},
		{"  [1]\n", "[1]"},
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"```json\n[1]", "```json\n[1]"},
	}
	for _, tt := range tests {
		if got := stripCodeFence(tt.in); got != tt.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
