package process

/*
#include "../cabi/clap.h"
#include <string.h>
*/
import "C"

import "unsafe"

// ForeignEventSpaceID is a non-core event-space id, used by test cases
// that check a plugin correctly ignores events outside
// CLAP_CORE_EVENT_SPACE_ID.
const ForeignEventSpaceID = 1

// NewNoteEvent builds a serialized clap_event_note_t.
func NewNoteEvent(eventType uint16, time uint32, noteID int32, port, channel, key int16, velocity float64) Event {
	var raw C.clap_event_note_t
	raw.header.size = C.uint32_t(unsafe.Sizeof(raw))
	raw.header.time = C.uint32_t(time)
	raw.header.space_id = C.uint16_t(C.CLAP_CORE_EVENT_SPACE_ID)
	raw.header._type = C.uint16_t(eventType)
	raw.note_id = C.int32_t(noteID)
	raw.port_index = C.int16_t(port)
	raw.channel = C.int16_t(channel)
	raw.key = C.int16_t(key)
	raw.velocity = C.double(velocity)
	return eventFromStruct(unsafe.Pointer(&raw), unsafe.Sizeof(raw), time, eventType, uint16(C.CLAP_CORE_EVENT_SPACE_ID))
}

// NewParamValueEvent builds a serialized clap_event_param_value_t on the
// core event space.
func NewParamValueEvent(paramID uint32, value float64, time uint32) Event {
	return newParamValueEvent(paramID, value, time, uint16(C.CLAP_CORE_EVENT_SPACE_ID))
}

// NewForeignNamespaceParamValueEvent builds the same event tagged with a
// non-core space_id, which a conforming plugin must not act on.
func NewForeignNamespaceParamValueEvent(paramID uint32, value float64, time uint32) Event {
	return newParamValueEvent(paramID, value, time, ForeignEventSpaceID)
}

func newParamValueEvent(paramID uint32, value float64, time uint32, spaceID uint16) Event {
	var raw C.clap_event_param_value_t
	raw.header.size = C.uint32_t(unsafe.Sizeof(raw))
	raw.header.time = C.uint32_t(time)
	raw.header.space_id = C.uint16_t(spaceID)
	raw.header._type = C.uint16_t(C.CLAP_EVENT_PARAM_VALUE)
	raw.param_id = C.clap_id(paramID)
	raw.note_id = -1
	raw.port_index = -1
	raw.channel = -1
	raw.key = -1
	raw.value = C.double(value)
	return eventFromStruct(unsafe.Pointer(&raw), unsafe.Sizeof(raw), time, uint16(C.CLAP_EVENT_PARAM_VALUE), spaceID)
}

func eventFromStruct(ptr unsafe.Pointer, size uintptr, time uint32, eventType, spaceID uint16) Event {
	raw := make([]byte, size)
	copy(raw, unsafe.Slice((*byte)(ptr), size))
	return Event{Time: time, Type: eventType, SpaceID: spaceID, Raw: raw}
}
