package process

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFiniteCatchesNonFiniteAndSubnormalSamples(t *testing.T) {
	b := NewBuffers(PortLayout{}, PortLayout{ChannelCounts: []uint32{2}}, 4)
	defer b.Close()

	require.NoError(t, b.CheckFinite())

	b.OutputChannel(0, 0)[2] = float32(math.NaN())
	assert.ErrorContains(t, b.CheckFinite(), "non-finite")

	b.ClearOutputs()
	require.NoError(t, b.CheckFinite())

	b.OutputChannel(0, 1)[0] = float32(math.Inf(1))
	assert.ErrorContains(t, b.CheckFinite(), "non-finite")

	b.ClearOutputs()
	b.OutputChannel(0, 0)[3] = math.SmallestNonzeroFloat32 // smallest subnormal float32
	assert.ErrorContains(t, b.CheckFinite(), "subnormal")
}

func TestInputsUnchangedSinceDetectsInPlaceWrites(t *testing.T) {
	b := NewBuffers(PortLayout{ChannelCounts: []uint32{2}}, PortLayout{}, 8)
	defer b.Close()

	for i := range b.InputChannel(0, 0) {
		b.InputChannel(0, 0)[i] = float32(i)
	}
	before := b.SnapshotInputs()

	_, _, _, unchanged := b.InputsUnchangedSince(before)
	assert.True(t, unchanged)

	b.InputChannel(0, 1)[5] = 9999
	port, channel, frame, unchanged := b.InputsUnchangedSince(before)
	assert.False(t, unchanged)
	assert.Equal(t, 0, port)
	assert.Equal(t, 1, channel)
	assert.Equal(t, 5, frame)
}
