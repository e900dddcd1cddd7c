package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func draw(n int, next func() int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = next()
	}
	return out
}

func TestNewIsReproducible(t *testing.T) {
	a, b := New(42), New(42)
	assert.Equal(t, draw(5, a.Int64), draw(5, b.Int64))
	assert.NotEqual(t, draw(5, New(42).Int64), draw(5, New(43).Int64))
}

func TestDeriveSeparatesStreams(t *testing.T) {
	deck, policy := Derive(7, "deck"), Derive(7, "policy")
	assert.NotEqual(t, draw(5, deck.Int64), draw(5, policy.Int64))
	assert.Equal(t, draw(5, Derive(7, "deck").Int64), draw(5, Derive(7, "deck").Int64))
}
