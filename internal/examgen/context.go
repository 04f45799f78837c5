package examgen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/retriever"
)

// DefaultMinContextChars is the shortest joined context accepted for
// generation.
const DefaultMinContextChars = 300

// ValidateContext joins the retrieved chunks with single spaces and returns
// the result. It fails with EmptyContext when there are no chunks and with
// InsufficientContext when the joined text has fewer than minChars
// characters. A non-positive minChars uses DefaultMinContextChars.
func ValidateContext(chunks []retriever.Chunk, minChars int) (string, error) {
	if minChars <= 0 {
		minChars = DefaultMinContextChars
	}
	if len(chunks) == 0 {
		return "", errs.New(errs.KindEmptyContext, errs.StageValidate, "no material found for this material_id")
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	text := strings.Join(parts, " ")

	if n := utf8.RuneCountInString(text); n < minChars {
		return "", errs.New(errs.KindInsufficientContext, errs.StageValidate,
			fmt.Sprintf("retrieved context has %d characters, need at least %d", n, minChars))
	}
	return text, nil
}
