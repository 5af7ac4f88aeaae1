package nlp

import (
	"context"
	"strings"
	"unicode"
)

// Entity labels considered person or group referring.
const (
	LabelPerson = "PERSON"
	LabelGroup  = "NORP"
)

// Extraction is the result of running named-entity recognition over a
// message: the distinct person/group entity names mentioned, and the full
// lowercase token sequence used later for document-frequency statistics.
type Extraction struct {
	Entities []string
	Tokens   []string
}

// Extractor finds named entities in raw message text. Implementations are
// deterministic for identical input.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}

// Tokenize splits text into a lowercase token sequence. Tokens are maximal
// runs of letters, digits, apostrophes, and @ (to keep handles intact).
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '@'
	})
}
