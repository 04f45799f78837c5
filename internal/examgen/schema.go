package examgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const questionSchemaURL = "schema://exam-question.json"

// QuestionSchema describes one element of the model's output array.
var QuestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"material_id": map[string]any{
			"type":        "integer",
			"description": "The material the question was generated from",
		},
		"content": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "The bare question text, without numbering",
		},
		"difficulty": map[string]any{
			"type": "string",
			"enum": []any{string(DifficultyEasy), string(DifficultyMedium), string(DifficultyHard)},
		},
		"taxonomy_level": map[string]any{
			"type": "string",
			"enum": []any{string(TaxonomyC5), string(TaxonomyC6)},
		},
		"answers": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label": map[string]any{
						"type":    "string",
						"pattern": "^[A-Z]$",
					},
					"text": map[string]any{
						"type":      "string",
						"minLength": 1,
					},
					"is_correct": map[string]any{
						"type": "boolean",
					},
				},
				"required": []any{"label", "text", "is_correct"},
			},
		},
	},
	"required": []any{"material_id", "content", "difficulty", "taxonomy_level", "answers"},
}

// compiledQuestionSchema compiles QuestionSchema once per process.
var compiledQuestionSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	// The compiler wants a decoded JSON value, not Go maps with typed slices.
	b, err := json.Marshal(QuestionSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal question schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode question schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(questionSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add question schema: %w", err)
	}
	return c.Compile(questionSchemaURL)
})
