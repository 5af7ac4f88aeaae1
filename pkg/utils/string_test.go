package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wardenhq/warden/pkg/utils"
)

func TestCompressAllWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", utils.CompressAllWhitespace("a  b\t\nc"))
	assert.Equal(t, "", utils.CompressAllWhitespace("   "))
}

func TestCompressWhitespacePreserveNewlines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b\nc d", utils.CompressWhitespacePreserveNewlines("a   b\nc\t d"))
}
