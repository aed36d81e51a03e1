package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Generator produces one-time codes. Tests swap in a fixed implementation.
type Generator interface {
	Generate(length int, alphabet string) (string, error)
}

// Random draws every character uniformly from the alphabet using crypto/rand.
type Random struct{}

// Generate returns length characters picked with replacement from alphabet.
func (Random) Generate(length int, alphabet string) (string, error) {
	symbols := []rune(alphabet)
	if len(symbols) == 0 {
		return "", errors.New("generate code: empty alphabet")
	}
	if length < 1 {
		return "", fmt.Errorf("generate code: invalid length %d", length)
	}
	max := big.NewInt(int64(len(symbols)))
	out := make([]rune, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		out[i] = symbols[n.Int64()]
	}
	return string(out), nil
}

// Fixed always returns Code. It ignores length and alphabet.
type Fixed struct {
	Code string
}

func (f Fixed) Generate(int, string) (string, error) {
	return f.Code, nil
}
