package testcases

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandInRangeStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		v := randInRange(rng, -2.5, 10)
		assert.GreaterOrEqual(t, v, -2.5)
		assert.LessOrEqual(t, v, 10.0)
	}
}

func TestRandInRangeHandlesDegenerateRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, 3.0, randInRange(rng, 3, 3))
	assert.Equal(t, 5.0, randInRange(rng, 5, 1))
}
