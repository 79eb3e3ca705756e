package process

/*
#include "../cabi/clap.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Config describes one process-cycle run: block size, iteration count
// and the port layout to allocate buffers for.
type Config struct {
	SampleRate   float64
	Tempo        float64
	FramesCount  uint32
	Iterations   uint32
	InputLayout  PortLayout
	OutputLayout PortLayout
}

// Iteration is a snapshot of one process() call's result, handed to the
// driver's preprocess/postprocess hooks.
type Iteration struct {
	Index        uint32
	Status       int32
	Events       []Event // plugin-produced output events only
	Buffers      *Buffers
	InputsBefore [][][]float32
}

// Driver runs an N-iteration process cycle against a plugin's process
// function pointer, feeding it fresh out-of-place buffers and a shared
// event queue each iteration, advancing the transport between calls.
type Driver struct {
	cfg       Config
	buffers   *Buffers
	transport *Transport
}

// NewDriver allocates the buffers and transport for cfg.
func NewDriver(cfg Config) *Driver {
	return &Driver{
		cfg:       cfg,
		buffers:   NewBuffers(cfg.InputLayout, cfg.OutputLayout, cfg.FramesCount),
		transport: NewTransport(cfg.SampleRate, cfg.Tempo),
	}
}

// Buffers exposes the driver's buffer store for fixture seeding.
func (d *Driver) Buffers() *Buffers { return d.buffers }

// Close releases the driver's pinned allocations.
func (d *Driver) Close() {
	d.buffers.Close()
	d.transport.Close()
}

// PluginProcessFn matches clap_plugin_t.process's signature as exposed
// by pluginhost.Instance.Process.
type PluginProcessFn func(procPtr unsafe.Pointer) int32

// Run drives cfg.Iterations process() calls. preprocess is called before
// each call with the events to seed for that iteration (input buffers
// are left as the caller seeded them unless preprocess overwrites them;
// outputs are never copied into inputs); postprocess is called with the
// result after every call. Run stops at the first postprocess error.
func Run(d *Driver, process PluginProcessFn, preprocess func(it *Iteration) []Event, postprocess func(it *Iteration) error) error {
	for i := uint32(0); i < d.cfg.Iterations; i++ {
		d.buffers.ClearOutputs()
		before := d.buffers.SnapshotInputs()

		var seed []Event
		if preprocess != nil {
			it := &Iteration{Index: i, Buffers: d.buffers, InputsBefore: before}
			seed = preprocess(it)
		}

		queue := NewEventQueue(seed)
		proc := buildProcessStruct(d, queue)

		status := process(unsafe.Pointer(proc))
		events := queue.OutputEvents()
		queue.Close()
		freeProcessStruct(proc)

		if err := d.buffers.CheckFinite(); err != nil {
			return fmt.Errorf("process: iteration %d: %w", i, err)
		}

		if postprocess != nil {
			it := &Iteration{Index: i, Status: status, Events: events, Buffers: d.buffers, InputsBefore: before}
			if err := postprocess(it); err != nil {
				return fmt.Errorf("process: iteration %d: %w", i, err)
			}
		}

		d.transport.AdvanceFrames(d.cfg.FramesCount)
	}
	return nil
}

func buildProcessStruct(d *Driver, queue *EventQueue) *C.clap_process_t {
	proc := (*C.clap_process_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_process_t{}))))
	proc.frames_count = C.uint32_t(d.cfg.FramesCount)
	proc.transport = (*C.clap_event_transport_t)(d.transport.Ptr())

	inPtr, inCount := d.buffers.CInputs()
	outPtr, outCount := d.buffers.COutputs()
	proc.audio_inputs = (*C.clap_audio_buffer_t)(inPtr)
	proc.audio_inputs_count = C.uint32_t(inCount)
	proc.audio_outputs = (*C.clap_audio_buffer_t)(outPtr)
	proc.audio_outputs_count = C.uint32_t(outCount)

	proc.in_events = (*C.clap_input_events_t)(queue.InPtr())
	proc.out_events = (*C.clap_output_events_t)(queue.OutPtr())
	return proc
}

func freeProcessStruct(proc *C.clap_process_t) {
	C.free(unsafe.Pointer(proc))
}
