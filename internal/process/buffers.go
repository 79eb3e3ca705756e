// Package process drives clap_plugin.process cycles out-of-place: it
// owns input and output audio buffers backed by pinned, non-GC-moved
// memory, an event queue over the same store for both directions, a
// transport info block, and the iteration loop that feeds them to the
// plugin a block at a time (§4.6).
package process

/*
#include "../cabi/clap.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"math"
	"unsafe"
)

// PortLayout describes one side (input or output) of the audio port
// configuration the driver allocates buffers for.
type PortLayout struct {
	ChannelCounts []uint32 // one entry per port
}

// Buffers owns the C-allocated clap_audio_buffer_t arrays and the
// float32 sample storage behind them. Everything here is out-of-place:
// input and output channels never alias, so a plugin that corrupts its
// input in place is caught by comparing against a saved copy.
type Buffers struct {
	framesCount uint32

	inputs     []*C.clap_audio_buffer_t
	outputs    []*C.clap_audio_buffer_t
	inputData  [][][]float32 // [port][channel][frame]
	outputData [][][]float32

	cInputs  *C.clap_audio_buffer_t
	cOutputs *C.clap_audio_buffer_t
}

// NewBuffers allocates pinned buffers for the given port layouts and
// block size.
func NewBuffers(inLayout, outLayout PortLayout, framesCount uint32) *Buffers {
	b := &Buffers{framesCount: framesCount}

	b.cInputs = allocBufferArray(len(inLayout.ChannelCounts))
	b.cOutputs = allocBufferArray(len(outLayout.ChannelCounts))

	for i, ch := range inLayout.ChannelCounts {
		cBuf := bufferAt(b.cInputs, i)
		data := allocChannelData(ch, framesCount)
		b.inputData = append(b.inputData, data)
		installChannelPointers(cBuf, data, ch)
	}
	for i, ch := range outLayout.ChannelCounts {
		cBuf := bufferAt(b.cOutputs, i)
		data := allocChannelData(ch, framesCount)
		b.outputData = append(b.outputData, data)
		installChannelPointers(cBuf, data, ch)
	}

	return b
}

func allocBufferArray(n int) *C.clap_audio_buffer_t {
	if n == 0 {
		return nil
	}
	return (*C.clap_audio_buffer_t)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.clap_audio_buffer_t{}))))
}

func bufferAt(arr *C.clap_audio_buffer_t, idx int) *C.clap_audio_buffer_t {
	return (*C.clap_audio_buffer_t)(unsafe.Pointer(uintptr(unsafe.Pointer(arr)) + uintptr(idx)*unsafe.Sizeof(C.clap_audio_buffer_t{})))
}

// allocChannelData returns Go-owned float32 slices for each channel,
// kept alive for the Buffers' lifetime by the struct field referencing
// them; Go's allocator never relocates live heap objects, so the
// pointers installed into cBuf.data32 below stay valid.
func allocChannelData(channels, frames uint32) [][]float32 {
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	return data
}

func installChannelPointers(cBuf *C.clap_audio_buffer_t, data [][]float32, channels uint32) {
	if channels == 0 {
		return
	}
	ptrArray := (*[1 << 20]*C.float)(C.malloc(C.size_t(channels) * C.size_t(unsafe.Sizeof(uintptr(0)))))[:channels:channels]
	for c := uint32(0); c < channels; c++ {
		ptrArray[c] = (*C.float)(unsafe.Pointer(&data[c][0]))
	}
	cBuf.data32 = (**C.float)(unsafe.Pointer(&ptrArray[0]))
	cBuf.channel_count = C.uint32_t(channels)
}

// InputChannel returns the writable Go slice backing one input channel,
// for seeding test fixtures before a process call.
func (b *Buffers) InputChannel(port, channel int) []float32 {
	return b.inputData[port][channel]
}

// OutputChannel returns the Go slice backing one output channel, valid
// to read after a process call.
func (b *Buffers) OutputChannel(port, channel int) []float32 {
	return b.outputData[port][channel]
}

// SnapshotInputs copies every input channel, for later comparison
// against post-process values to detect in-place corruption of inputs.
func (b *Buffers) SnapshotInputs() [][][]float32 {
	snap := make([][][]float32, len(b.inputData))
	for p, port := range b.inputData {
		snap[p] = make([][]float32, len(port))
		for c, ch := range port {
			cp := make([]float32, len(ch))
			copy(cp, ch)
			snap[p][c] = cp
		}
	}
	return snap
}

// ClearOutputs zeroes every output sample, so a plugin that writes
// nothing is distinguishable from one that happens to write silence by
// coincidence only when compared against a known non-zero input.
func (b *Buffers) ClearOutputs() {
	for _, port := range b.outputData {
		for _, ch := range port {
			for i := range ch {
				ch[i] = 0
			}
		}
	}
}

// CInputs and COutputs return the pointers and counts for
// clap_process_t.audio_inputs/audio_outputs.
func (b *Buffers) CInputs() (unsafe.Pointer, uint32) {
	return unsafe.Pointer(b.cInputs), uint32(len(b.inputData))
}

func (b *Buffers) COutputs() (unsafe.Pointer, uint32) {
	return unsafe.Pointer(b.cOutputs), uint32(len(b.outputData))
}

// Close releases all C-allocated memory. The Go-owned sample slices are
// left to the garbage collector.
func (b *Buffers) Close() {
	freeBufferArray(b.cInputs, len(b.inputData))
	freeBufferArray(b.cOutputs, len(b.outputData))
}

func freeBufferArray(arr *C.clap_audio_buffer_t, n int) {
	if arr == nil {
		return
	}
	for i := 0; i < n; i++ {
		cBuf := bufferAt(arr, i)
		if cBuf.data32 != nil {
			C.free(unsafe.Pointer(cBuf.data32))
		}
	}
	C.free(unsafe.Pointer(arr))
}

// CheckFinite reports the first output sample that is non-finite or
// subnormal, if any. A plugin's audio output must never contain NaN,
// infinity, or a denormalized value.
func (b *Buffers) CheckFinite() error {
	for p, port := range b.outputData {
		for c, ch := range port {
			for i, v := range ch {
				if isNonFinite(v) {
					return fmt.Errorf("process: output port %d channel %d frame %d is non-finite (%v)", p, c, i, v)
				}
				if isSubnormal(v) {
					return fmt.Errorf("process: output port %d channel %d frame %d is subnormal (%v)", p, c, i, v)
				}
			}
		}
	}
	return nil
}

func isNonFinite(v float32) bool {
	return v != v || v > maxFinite32 || v < -maxFinite32
}

// isSubnormal reports whether v is a denormalized (non-zero,
// below-normal-range) IEEE 754 float32: a biased exponent of zero with a
// non-zero mantissa.
func isSubnormal(v float32) bool {
	bits := math.Float32bits(v)
	exponent := (bits >> 23) & 0xFF
	mantissa := bits & 0x7FFFFF
	return exponent == 0 && mantissa != 0
}

const maxFinite32 = 3.4028234663852886e+38

// InputsUnchangedSince reports whether every input sample still matches
// its value in before, a snapshot taken with SnapshotInputs. Out-of-place
// processing must never write through the input pointers.
func (b *Buffers) InputsUnchangedSince(before [][][]float32) (port, channel, frame int, unchanged bool) {
	for p, portData := range b.inputData {
		for c, ch := range portData {
			for i, v := range ch {
				if before[p][c][i] != v {
					return p, c, i, false
				}
			}
		}
	}
	return 0, 0, 0, true
}
