package examgen

import (
	"fmt"
	"strings"
)

// systemPrompt sets the model's role. The per-request rules live in the
// user message built by BuildPrompt.
const systemPrompt = `You are an exam author who writes multiple-choice questions strictly from supplied course material. You answer with JSON only.`

// Default counts when the instruction does not say otherwise.
const (
	DefaultQuestionCount = 1
	DefaultAnswerCount   = 4
)

// BuildPrompt renders the generation instruction for one request. The output
// depends only on its arguments.
func BuildPrompt(context, instruction string, materialID int64) string {
	var b strings.Builder

	b.WriteString("Write multiple-choice exam questions.\n\n")

	b.WriteString("Hard rules:\n")
	b.WriteString("- Use ONLY information found in the CONTEXT below. Do not use general knowledge.\n")
	b.WriteString("- If the CONTEXT does not contain the material the instruction asks for, do not invent questions. ")
	b.WriteString(`Return exactly {"error": "<short reason>"} instead.` + "\n\n")

	b.WriteString("### CONTEXT\n")
	b.WriteString(context)
	b.WriteString("\n### END CONTEXT\n\n")

	b.WriteString("### INSTRUCTION\n")
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n### END INSTRUCTION\n\n")

	b.WriteString("Output format:\n")
	b.WriteString("- Return only JSON, with no surrounding prose.\n")
	b.WriteString("- The output is always a JSON array of question objects, even for a single question: [ {...} ].\n")
	b.WriteString("- Each object has exactly this shape:\n")
	fmt.Fprintf(&b, `[
  {
    "material_id": %d,
    "content": "question text only",
    "difficulty": "easy | medium | hard",
    "taxonomy_level": "C5 | C6",
    "answers": [
      {"label": "A", "text": "...", "is_correct": false},
      {"label": "B", "text": "...", "is_correct": true}
    ]
  }
]
`, materialID)

	b.WriteString("\nAdditional rules:\n")
	fmt.Fprintf(&b, "- material_id is always %d.\n", materialID)
	b.WriteString(`- content is the bare question text. Do not number it ("Question 1", "No. 1").` + "\n")
	fmt.Fprintf(&b, "- Produce the number of questions the instruction asks for, or %d if it does not say.\n", DefaultQuestionCount)
	fmt.Fprintf(&b, "- Give each question the number of answers the instruction asks for, or %d if it does not say.\n", DefaultAnswerCount)
	b.WriteString("- Follow the instruction's difficulty and taxonomy level when given; otherwise choose them from your analysis of the question.\n")
	b.WriteString(`- difficulty is one of "easy", "medium", "hard".` + "\n")
	b.WriteString(`- taxonomy_level is "C5" or "C6" only. Never use C1 to C4.` + "\n")
	b.WriteString("- Answer labels are consecutive uppercase letters starting at A (A, B, C, D, ...).\n")
	b.WriteString("- Exactly one answer per question has is_correct = true.\n")
	b.WriteString("- No explanations, no discussion, and do not repeat the context.\n")

	return b.String()
}
