package nlp

import (
	"unicode"

	"github.com/wardenhq/warden/pkg/utils"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextNormalizer folds decorated unicode down to plain lowercase text so
// that obfuscated abuse ("𝒂𝒍𝒊𝒄𝒆") scores and keys the same as its plain
// form. Transformer chains carry state, so a fresh chain is built per call
// and the normalizer is safe for concurrent use.
type TextNormalizer struct{}

// NewTextNormalizer creates a new TextNormalizer instance.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

func newTransformChain() transform.Transformer {
	return transform.Chain(
		norm.NFKD,                          // Decompose with compatibility decomposition
		runes.Remove(runes.In(unicode.Mn)), // Remove non-spacing marks
		runes.Map(unicode.ToLower),         // Convert to lowercase before normalization
		norm.NFKC,                          // Normalize with compatibility composition
	)
}

// Normalize cleans up text using the normalizer.
// Returns the input unchanged if normalization fails.
func (n *TextNormalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = utils.CompressWhitespacePreserveNewlines(s)
	if s == "" {
		return ""
	}

	result, _, err := transform.String(newTransformChain(), s)
	if err != nil || result == "" {
		return s
	}

	return result
}
