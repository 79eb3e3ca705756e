package testcases

import (
	"testing"

	"github.com/clapcheck/clapcheck/internal/process"
	"github.com/stretchr/testify/assert"
)

func TestOutputEventsAreMonotonicAcceptsNonDecreasingTimes(t *testing.T) {
	events := []process.Event{{Time: 0}, {Time: 0}, {Time: 12}, {Time: 12}, {Time: 500}}
	_, _, _, ok := outputEventsAreMonotonic(events)
	assert.True(t, ok)
}

func TestOutputEventsAreMonotonicRejectsADecrease(t *testing.T) {
	events := []process.Event{{Time: 10}, {Time: 20}, {Time: 5}}
	idx, lastTime, eventTime, ok := outputEventsAreMonotonic(events)
	assert.False(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, uint32(20), lastTime)
	assert.Equal(t, uint32(5), eventTime)
}

func TestOutputEventsAreMonotonicAcceptsEmptyAndSingle(t *testing.T) {
	_, _, _, ok := outputEventsAreMonotonic(nil)
	assert.True(t, ok)

	_, _, _, ok = outputEventsAreMonotonic([]process.Event{{Time: 42}})
	assert.True(t, ok)
}
