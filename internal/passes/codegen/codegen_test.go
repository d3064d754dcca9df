package codegen

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequence struct {
	codes []string
	next  int
}

func (s *sequence) Generate() (string, error) {
	code := s.codes[s.next%len(s.codes)]
	s.next++
	return code, nil
}

func TestGenerateProducesCodesOverAlphabet(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 500; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.True(t, Valid(code), "unexpected code %q", code)
		seen[code] = struct{}{}
	}

	// 500 draws from 1.68M codes: a handful of collisions at most.
	assert.Greater(t, len(seen), 490)
}

func TestGenerateIsReproducibleFromSource(t *testing.T) {
	entropy := bytes.Repeat([]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}, 16)

	a, err := NewGeneratorFrom(bytes.NewReader(entropy)).Generate()
	require.NoError(t, err)
	b, err := NewGeneratorFrom(bytes.NewReader(entropy)).Generate()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestGenerateFailsWhenEntropyRunsOut(t *testing.T) {
	_, err := NewGeneratorFrom(bytes.NewReader(nil)).Generate()
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("AB12"))
	assert.True(t, Valid("ZZ99"))
	assert.False(t, Valid("ab12"))
	assert.False(t, Valid("AB1"))
	assert.False(t, Valid("AB123"))
	assert.False(t, Valid("AB-1"))
}

func TestClaimRetriesOnCollision(t *testing.T) {
	taken := map[string]bool{"AAAA": true, "BBBB": true}
	gen := &sequence{codes: []string{"AAAA", "BBBB", "CCCC"}}

	code, err := Claim(context.Background(), gen, 5, func(_ context.Context, code string) (bool, error) {
		return !taken[code], nil
	})

	require.NoError(t, err)
	assert.Equal(t, "CCCC", code)
	assert.Equal(t, 3, gen.next)
}

func TestClaimGivesUpAfterBudget(t *testing.T) {
	gen := &sequence{codes: []string{"AAAA"}}
	attempts := 0

	_, err := Claim(context.Background(), gen, 10, func(_ context.Context, _ string) (bool, error) {
		attempts++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 10, attempts)
}

func TestClaimPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("database is locked")
	gen := &sequence{codes: []string{"AAAA"}}

	_, err := Claim(context.Background(), gen, 10, func(_ context.Context, _ string) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestClaimStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Claim(ctx, &sequence{codes: []string{"AAAA"}}, 10, func(_ context.Context, _ string) (bool, error) {
		t.Fatal("claim must not be called")
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
