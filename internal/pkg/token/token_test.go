package token

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom_LengthAndAlphabet(t *testing.T) {
	for _, alphabet := range []string{"0123456789", "ABCDEFGHJKLMNPQRSTUVWXYZ23456789", "αβγ"} {
		code, err := Random{}.Generate(8, alphabet)
		require.NoError(t, err)
		assert.Equal(t, 8, utf8.RuneCountInString(code))
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected symbol %q", r)
		}
	}
}

func TestRandom_SingleSymbolAlphabet(t *testing.T) {
	code, err := Random{}.Generate(6, "0")
	require.NoError(t, err)
	assert.Equal(t, "000000", code)
}

func TestRandom_CoversAlphabet(t *testing.T) {
	seen := map[rune]bool{}
	for i := 0; i < 50; i++ {
		code, err := Random{}.Generate(20, "0123456789")
		require.NoError(t, err)
		for _, r := range code {
			seen[r] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestRandom_RejectsBadInput(t *testing.T) {
	_, err := Random{}.Generate(6, "")
	assert.Error(t, err)
	_, err = Random{}.Generate(0, "0123")
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	code, err := Fixed{Code: "000000"}.Generate(4, "ab")
	require.NoError(t, err)
	assert.Equal(t, "000000", code)
}
