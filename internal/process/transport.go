package process

/*
#include "../cabi/clap.h"
#include <stdlib.h>
*/
import "C"

import "unsafe"

// fixedPointFactor is CLAP_BEATTIME_FACTOR and CLAP_SECTIME_FACTOR: both
// beat and second positions are carried as a signed 64-bit fixed-point
// integer with 31 fractional bits, so hosts never disagree on rounding
// across the transport timeline.
const fixedPointFactor = int64(1) << 31

// Transport is a mutable, monotonically-advancing clock the driver feeds
// to clap_process_t.transport once per iteration.
type Transport struct {
	cTransport *C.clap_event_transport_t

	tempo       float64
	sampleRate  float64
	playing     bool
	songPosBeats   int64
	songPosSeconds int64
}

// NewTransport allocates a pinned transport block starting at position
// zero with the given tempo and sample rate.
func NewTransport(sampleRate, tempo float64) *Transport {
	t := &Transport{sampleRate: sampleRate, tempo: tempo, playing: true}
	t.cTransport = (*C.clap_event_transport_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_event_transport_t{}))))
	t.sync()
	return t
}

// Ptr returns the clap_event_transport_t pointer for clap_process_t.transport.
func (t *Transport) Ptr() unsafe.Pointer { return unsafe.Pointer(t.cTransport) }

// Close releases the pinned allocation.
func (t *Transport) Close() { C.free(unsafe.Pointer(t.cTransport)) }

// AdvanceFrames moves the transport forward by the number of frames just
// processed, keeping beat and second timelines consistent with tempo and
// sample rate.
func (t *Transport) AdvanceFrames(frames uint32) {
	if !t.playing {
		return
	}
	seconds := float64(frames) / t.sampleRate
	beats := seconds * (t.tempo / 60.0)

	t.songPosSeconds += int64(seconds * float64(fixedPointFactor))
	t.songPosBeats += int64(beats * float64(fixedPointFactor))
	t.sync()
}

// SetPlaying toggles the is-playing transport flag.
func (t *Transport) SetPlaying(playing bool) {
	t.playing = playing
	t.sync()
}

func (t *Transport) sync() {
	flags := uint32(C.CLAP_TRANSPORT_HAS_TEMPO) | uint32(C.CLAP_TRANSPORT_HAS_BEATS_TIMELINE) | uint32(C.CLAP_TRANSPORT_HAS_SECONDS_TIMELINE)
	if t.playing {
		flags |= uint32(C.CLAP_TRANSPORT_IS_PLAYING)
	}

	t.cTransport.header.size = C.uint32_t(unsafe.Sizeof(C.clap_event_transport_t{}))
	t.cTransport.header.space_id = C.uint16_t(C.CLAP_CORE_EVENT_SPACE_ID)
	t.cTransport.header._type = C.uint16_t(C.CLAP_EVENT_TRANSPORT)
	t.cTransport.flags = C.uint32_t(flags)
	t.cTransport.song_pos_beats = C.clap_beattime(t.songPosBeats)
	t.cTransport.song_pos_seconds = C.clap_sectime(t.songPosSeconds)
	t.cTransport.tempo = C.double(t.tempo)
	t.cTransport.tsig_num = 4
	t.cTransport.tsig_denom = 4
}
