package process

/*
#include "../cabi/clap.h"
#include "_cgo_export.h"
#include <stdlib.h>
#include <string.h>

static void clapcheck_install_input_events(clap_input_events_t *in) {
	in->size = clapcheckInEventsSize;
	in->get  = clapcheckInEventsGet;
}

static void clapcheck_install_output_events(clap_output_events_t *out) {
	out->try_push = clapcheckOutEventsTryPush;
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"
)

// Event is a deserialized core-namespace event. Raw holds the original
// bytes so a Put-after-Get roundtrip preserves fields this harness does
// not interpret.
type Event struct {
	Time    uint32
	Type    uint16
	SpaceID uint16
	Flags   uint32
	Raw     []byte
}

// EventQueue backs both clap_input_events_t and clap_output_events_t
// over one store: the same underlying slice of serialized events is
// read by in_events.get and appended to by out_events.try_push,
// mirroring how a real host shares one timeline across a process call
// while still presenting the plugin with two distinct vtables.
type EventQueue struct {
	cIn  *C.clap_input_events_t
	cOut *C.clap_output_events_t

	handle cgo.Handle

	events    []Event
	seedCount int
	bufs      [][]byte // keeps each event's raw C-visible bytes alive
}

// NewEventQueue allocates a pinned queue seeded with the given input
// events, ready to also collect whatever the plugin pushes as output.
func NewEventQueue(seed []Event) *EventQueue {
	q := &EventQueue{events: append([]Event(nil), seed...), seedCount: len(seed)}
	for _, e := range q.events {
		q.bufs = append(q.bufs, e.Raw)
	}

	q.cIn = (*C.clap_input_events_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_input_events_t{}))))
	q.cOut = (*C.clap_output_events_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_output_events_t{}))))

	q.handle = cgo.NewHandle(q)
	q.cIn.ctx = unsafe.Pointer(uintptr(q.handle))
	q.cOut.ctx = unsafe.Pointer(uintptr(q.handle))
	C.clapcheck_install_input_events(q.cIn)
	C.clapcheck_install_output_events(q.cOut)

	return q
}

// InPtr and OutPtr return the raw vtable pointers for clap_process_t.
func (q *EventQueue) InPtr() unsafe.Pointer  { return unsafe.Pointer(q.cIn) }
func (q *EventQueue) OutPtr() unsafe.Pointer { return unsafe.Pointer(q.cOut) }

// Close releases the pinned allocation. It does not touch the
// individual event byte slices, which are Go-owned.
func (q *EventQueue) Close() {
	C.free(unsafe.Pointer(q.cIn))
	C.free(unsafe.Pointer(q.cOut))
	q.handle.Delete()
}

// Events returns every event currently in the queue, input and any
// output pushed by the plugin, in the order get()/try_push() saw them.
func (q *EventQueue) Events() []Event {
	return q.events
}

// OutputEvents returns only the events the plugin itself pushed through
// try_push, excluding the seeded input events.
func (q *EventQueue) OutputEvents() []Event {
	return q.events[q.seedCount:]
}

//export clapcheckInEventsSize
func clapcheckInEventsSize(list *C.clap_input_events_t) C.uint32_t {
	q := cgo.Handle(uintptr(list.ctx)).Value().(*EventQueue)
	return C.uint32_t(len(q.events))
}

//export clapcheckInEventsGet
func clapcheckInEventsGet(list *C.clap_input_events_t, index C.uint32_t) *C.clap_event_header_t {
	q := cgo.Handle(uintptr(list.ctx)).Value().(*EventQueue)
	i := int(index)
	if i < 0 || i >= len(q.events) {
		return nil
	}
	return (*C.clap_event_header_t)(unsafe.Pointer(&q.events[i].Raw[0]))
}

//export clapcheckOutEventsTryPush
func clapcheckOutEventsTryPush(list *C.clap_output_events_t, ev *C.clap_event_header_t) C.bool {
	q := cgo.Handle(uintptr(list.ctx)).Value().(*EventQueue)
	size := uint32(ev.size)
	raw := make([]byte, size)
	copy(raw, unsafe.Slice((*byte)(unsafe.Pointer(ev)), size))
	q.events = append(q.events, Event{
		Time:    uint32(ev.time),
		Type:    uint16(ev._type),
		SpaceID: uint16(ev.space_id),
		Flags:   uint32(ev.flags),
		Raw:     raw,
	})
	q.bufs = append(q.bufs, raw)
	return C.bool(true)
}
