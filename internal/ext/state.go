package ext

/*
#include "../cabi/clap.h"
#include <stdlib.h>
#include "_cgo_export.h"

static void clapcheck_install_istream(clap_istream_t *s) {
	s->read = clapcheckStreamRead;
}

static void clapcheck_install_ostream(clap_ostream_t *s) {
	s->write = clapcheckStreamWrite;
}
*/
import "C"

import (
	"bytes"
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// State wraps clap_plugin_state_t. Save/Load are backed by pinned stream
// objects presenting a single read or write function pointer each,
// mirroring the teacher's clap_istream_t/clap_ostream_t adapters but in
// the host's (not the plugin's) role: here clapcheck answers read/write
// (§4.5).
type State struct {
	ext    *C.clap_plugin_state_t
	plugin *C.clap_plugin_t
}

// NewState constructs the wrapper from a non-null extension pointer.
func NewState(p, plugin unsafe.Pointer) *State {
	if p == nil {
		return nil
	}
	return &State{ext: (*C.clap_plugin_state_t)(p), plugin: (*C.clap_plugin_t)(plugin)}
}

// chunkedReader feeds bytes to the plugin's read callback in at most
// maxChunk-byte pieces when maxChunk > 0, exercising short reads (§8
// invariant 8).
type chunkedReader struct {
	data     []byte
	pos      int
	maxChunk int
}

//export clapcheckStreamRead
func clapcheckStreamRead(stream *C.clap_istream_t, buffer unsafe.Pointer, size C.uint64_t) C.int64_t {
	r := cgo.Handle(uintptr(stream.ctx)).Value().(*chunkedReader)
	want := int(size)
	if r.maxChunk > 0 && want > r.maxChunk {
		want = r.maxChunk
	}
	remaining := len(r.data) - r.pos
	if remaining <= 0 {
		return 0
	}
	if want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0
	}
	dst := unsafe.Slice((*byte)(buffer), want)
	copy(dst, r.data[r.pos:r.pos+want])
	r.pos += want
	return C.int64_t(want)
}

type chunkedWriter struct {
	buf      bytes.Buffer
	maxChunk int
}

//export clapcheckStreamWrite
func clapcheckStreamWrite(stream *C.clap_ostream_t, buffer unsafe.Pointer, size C.uint64_t) C.int64_t {
	w := cgo.Handle(uintptr(stream.ctx)).Value().(*chunkedWriter)
	want := int(size)
	if w.maxChunk > 0 && want > w.maxChunk {
		want = w.maxChunk
	}
	if want <= 0 {
		return 0
	}
	src := unsafe.Slice((*byte)(buffer), want)
	n, _ := w.buf.Write(src)
	return C.int64_t(n)
}

// Save calls plugin.state.save with an unbuffered (maxChunk=0) output
// stream and returns the bytes written.
func (s *State) Save() ([]byte, error) {
	return s.save(0)
}

// SaveBuffered is the buffered variant of Save, capping each write
// callback at maxChunk bytes (§8 invariant 8 uses 17 and 23).
func (s *State) SaveBuffered(maxChunk int) ([]byte, error) {
	return s.save(maxChunk)
}

func (s *State) save(maxChunk int) ([]byte, error) {
	w := &chunkedWriter{maxChunk: maxChunk}
	handle := cgo.NewHandle(w)
	defer handle.Delete()

	cStream := (*C.clap_ostream_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_ostream_t{}))))
	defer C.free(unsafe.Pointer(cStream))
	cStream.ctx = unsafe.Pointer(uintptr(handle))
	C.clapcheck_install_ostream(cStream)

	if !bool(s.ext.save(s.plugin, cStream)) {
		return nil, fmt.Errorf("state.save returned false")
	}
	return w.buf.Bytes(), nil
}

// Load calls plugin.state.load with an unbuffered (maxChunk=0) input
// stream built from data.
func (s *State) Load(data []byte) error {
	return s.load(data, 0)
}

// LoadBuffered is the buffered variant of Load.
func (s *State) LoadBuffered(data []byte, maxChunk int) error {
	return s.load(data, maxChunk)
}

func (s *State) load(data []byte, maxChunk int) error {
	r := &chunkedReader{data: data, maxChunk: maxChunk}
	handle := cgo.NewHandle(r)
	defer handle.Delete()

	cStream := (*C.clap_istream_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_istream_t{}))))
	defer C.free(unsafe.Pointer(cStream))
	cStream.ctx = unsafe.Pointer(uintptr(handle))
	C.clapcheck_install_istream(cStream)

	if !bool(s.ext.load(s.plugin, cStream)) {
		return fmt.Errorf("state.load returned false")
	}
	return nil
}
