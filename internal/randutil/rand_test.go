package randutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for range 16 {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestDurationBounds(t *testing.T) {
	r := New(7)
	for range 500 {
		d := Duration(r, 500*time.Millisecond, 2*time.Second)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 2*time.Second)
	}

	assert.Equal(t, time.Second, Duration(r, time.Second, time.Second))
	assert.Equal(t, time.Second, Duration(r, time.Second, 0))
}

func TestIntBetween(t *testing.T) {
	r := New(3)
	for range 200 {
		n := IntBetween(r, 3, 6)
		assert.True(t, n >= 3 && n <= 6, "got %d", n)
	}
	assert.Equal(t, 4, IntBetween(r, 4, 2))
}
