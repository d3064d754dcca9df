package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// Alphabet is the set of symbols a pass code is drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength gives 36^4 (about 1.68M) distinct codes.
	CodeLength = 4
	// DefaultMaxAttempts bounds how many codes are tried for a single pass.
	DefaultMaxAttempts = 10
)

// ErrCodeSpaceExhausted is returned when no free code was found within the retry budget.
var ErrCodeSpaceExhausted = errors.New("pass code space exhausted")

// Source produces candidate pass codes.
type Source interface {
	Generate() (string, error)
}

// Generator draws codes uniformly at random. It gives no uniqueness guarantee;
// callers claim codes through the store and retry on collision.
type Generator struct {
	random io.Reader
}

func NewGenerator() *Generator {
	return &Generator{random: rand.Reader}
}

// NewGeneratorFrom uses r as the entropy source, which makes the output reproducible in tests.
func NewGeneratorFrom(r io.Reader) *Generator {
	return &Generator{random: r}
}

func (g *Generator) Generate() (string, error) {
	alphabetSize := big.NewInt(int64(len(Alphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(g.random, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to draw pass code: %w", err)
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Valid reports whether s could have been produced by a Generator.
func Valid(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// ClaimFunc tries to reserve code and reports whether it was free.
type ClaimFunc func(ctx context.Context, code string) (bool, error)

// Claim keeps generating codes until claim accepts one, giving up with
// ErrCodeSpaceExhausted after maxAttempts collisions.
func Claim(ctx context.Context, gen Source, maxAttempts int, claim ClaimFunc) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := gen.Generate()
		if err != nil {
			return "", err
		}

		ok, err := claim(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to claim pass code %s: %w", code, err)
		}
		if ok {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: no free code after %d attempts", ErrCodeSpaceExhausted, maxAttempts)
}
