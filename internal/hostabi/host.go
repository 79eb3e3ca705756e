// Package hostabi implements the host-side CLAP C ABI (§4.2 of the
// specification): a reentrant vtable the plugin calls back into, with
// thread-affinity enforcement and a per-instance pending-callback state
// record.
//
// The struct layout of the vtables below must match the plugin ABI
// headers byte for byte; see internal/cabi/clap.h for the vendored
// subset of those headers. Every vtable here is installed once, at host
// construction, into C-allocated (never Go-GC-moved) memory so the
// pointer the plugin stores stays valid for the host's entire lifetime.
package hostabi

/*
#include "../cabi/clap.h"
#include <stdlib.h>
#include <string.h>
#include "_cgo_export.h"

static void clapcheck_install_host_vtable(clap_host_t *h) {
	h->get_extension   = clapcheckHostGetExtension;
	h->request_restart = clapcheckHostRequestRestart;
	h->request_process = clapcheckHostRequestProcess;
	h->request_callback = clapcheckHostRequestCallback;
}

static void clapcheck_install_log_ext(clap_host_log_t *l) {
	l->log = clapcheckHostLog;
}

static void clapcheck_install_thread_check_ext(clap_host_thread_check_t *t) {
	t->is_main_thread  = clapcheckHostIsMainThread;
	t->is_audio_thread = clapcheckHostIsAudioThread;
}

static void clapcheck_install_audio_ports_ext(clap_host_audio_ports_t *a) {
	a->is_rescan_flag_supported = clapcheckHostAudioPortsIsRescanFlagSupported;
	a->rescan = clapcheckHostAudioPortsRescan;
}

static void clapcheck_install_note_ports_ext(clap_host_note_ports_t *n) {
	n->supported_dialects = clapcheckHostNotePortsSupportedDialects;
	n->rescan = clapcheckHostNotePortsRescan;
}

static void clapcheck_install_params_ext(clap_host_params_t *p) {
	p->rescan = clapcheckHostParamsRescan;
	p->clear = clapcheckHostParamsClear;
	p->request_flush = clapcheckHostParamsRequestFlush;
}

static void clapcheck_install_state_ext(clap_host_state_t *s) {
	s->mark_dirty = clapcheckHostStateMarkDirty;
}
*/
import "C"

import (
	"runtime/cgo"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
	"github.com/clapcheck/clapcheck/internal/osthread"
	"github.com/rs/zerolog/log"
)

// PendingCallbacks tracks the flags a plugin has requested on the host.
// The request_* callbacks set them; nothing in the harness reads or
// clears them, so the processing driver (internal/process) does not
// break out of a run or restart the plugin when a restart is requested.
type PendingCallbacks struct {
	RequestedRestart  atomic.Bool
	RequestedProcess  atomic.Bool
	RequestedCallback atomic.Bool
}

// InstanceState is the per plugin-instance record kept in the host's
// instance map: the audio-thread identity registered for that instance
// and its pending host callbacks.
type InstanceState struct {
	mu             sync.Mutex
	audioThreadID  int64
	audioThreadSet bool
	Pending        PendingCallbacks
}

// Host is the pinned, reference-counted host object plugins hold raw
// pointers into. Its address never changes after construction (§3,
// invariant 3 in §8).
type Host struct {
	cHost *C.clap_host_t

	logExt         *C.clap_host_log_t
	threadCheckExt *C.clap_host_thread_check_t
	audioPortsExt  *C.clap_host_audio_ports_t
	notePortsExt   *C.clap_host_note_ports_t
	paramsExt      *C.clap_host_params_t
	stateExt       *C.clap_host_state_t

	mainThreadID int64

	mu        sync.Mutex
	instances map[unsafe.Pointer]*InstanceState

	errOnce sync.Once
	errSlot error

	handle cgo.Handle
}

// NewHost allocates a new pinned host object. Must be called from the
// thread that will act as the main thread for every plugin instance
// created against this host.
func NewHost() *Host {
	h := &Host{
		mainThreadID: osthread.Current(),
		instances:    make(map[unsafe.Pointer]*InstanceState),
	}

	h.cHost = (*C.clap_host_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_t{}))))
	h.cHost.clap_version.major = 1
	h.cHost.clap_version.minor = 2
	h.cHost.clap_version.revision = 0
	h.cHost.name = C.CString("clapcheck")
	h.cHost.vendor = C.CString("clapcheck")
	h.cHost.url = C.CString("")
	h.cHost.version = C.CString("1.0.0")

	h.handle = cgo.NewHandle(h)
	h.cHost.host_data = unsafe.Pointer(uintptr(h.handle))

	C.clapcheck_install_host_vtable(h.cHost)

	h.logExt = (*C.clap_host_log_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_log_t{}))))
	C.clapcheck_install_log_ext(h.logExt)

	h.threadCheckExt = (*C.clap_host_thread_check_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_thread_check_t{}))))
	C.clapcheck_install_thread_check_ext(h.threadCheckExt)

	h.audioPortsExt = (*C.clap_host_audio_ports_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_audio_ports_t{}))))
	C.clapcheck_install_audio_ports_ext(h.audioPortsExt)

	h.notePortsExt = (*C.clap_host_note_ports_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_note_ports_t{}))))
	C.clapcheck_install_note_ports_ext(h.notePortsExt)

	h.paramsExt = (*C.clap_host_params_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_params_t{}))))
	C.clapcheck_install_params_ext(h.paramsExt)

	h.stateExt = (*C.clap_host_state_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_host_state_t{}))))
	C.clapcheck_install_state_ext(h.stateExt)

	return h
}

// Ptr returns the raw clap_host_t pointer to hand to the plugin factory.
func (h *Host) Ptr() unsafe.Pointer { return unsafe.Pointer(h.cHost) }

// Close releases the pinned host allocation. Must happen only after
// every plugin instance created against this host has been destroyed.
func (h *Host) Close() {
	h.mu.Lock()
	if len(h.instances) != 0 {
		h.mu.Unlock()
		panic("hostabi: Close called with live plugin instances registered")
	}
	h.mu.Unlock()

	C.free(unsafe.Pointer(h.cHost.name))
	C.free(unsafe.Pointer(h.cHost.vendor))
	C.free(unsafe.Pointer(h.cHost.url))
	C.free(unsafe.Pointer(h.cHost.version))
	C.free(unsafe.Pointer(h.cHost))
	C.free(unsafe.Pointer(h.logExt))
	C.free(unsafe.Pointer(h.threadCheckExt))
	C.free(unsafe.Pointer(h.audioPortsExt))
	C.free(unsafe.Pointer(h.notePortsExt))
	C.free(unsafe.Pointer(h.paramsExt))
	C.free(unsafe.Pointer(h.stateExt))
	h.handle.Delete()
}

// RegisterInstance adds a fresh instance-state record for a plugin
// handle. Called when the plugin is created.
func (h *Host) RegisterInstance(pluginPtr unsafe.Pointer) *InstanceState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := &InstanceState{}
	h.instances[pluginPtr] = st
	return st
}

// UnregisterInstance drops the instance-state record on plugin destroy.
func (h *Host) UnregisterInstance(pluginPtr unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.instances, pluginPtr)
}

func (h *Host) stateFor(pluginPtr unsafe.Pointer) *InstanceState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instances[pluginPtr]
}

// RegisterAudioThread marks the current OS thread as the audio thread
// for the given plugin instance. Called by the pluginhost package when
// entering on_audio_thread.
func (h *Host) RegisterAudioThread(pluginPtr unsafe.Pointer) {
	st := h.stateFor(pluginPtr)
	if st == nil {
		return
	}
	st.mu.Lock()
	st.audioThreadID = osthread.Current()
	st.audioThreadSet = true
	st.mu.Unlock()
}

// UnregisterAudioThread clears the audio-thread identity for an instance.
func (h *Host) UnregisterAudioThread(pluginPtr unsafe.Pointer) {
	st := h.stateFor(pluginPtr)
	if st == nil {
		return
	}
	st.mu.Lock()
	st.audioThreadSet = false
	st.mu.Unlock()
}

// Pending returns the pending-callback flags for a plugin instance, or
// nil if the instance isn't registered (a harness bug elsewhere).
func (h *Host) Pending(pluginPtr unsafe.Pointer) *PendingCallbacks {
	st := h.stateFor(pluginPtr)
	if st == nil {
		return nil
	}
	return &st.Pending
}

// recordThreadViolation writes the first-observed thread-safety
// violation into the sticky error slot. Subsequent violations are
// dropped so the root cause survives (§5, §7).
func (h *Host) recordThreadViolation(where string) {
	h.errOnce.Do(func() {
		h.errSlot = &cabiThreadSafetyError{Where: where}
		log.Warn().Str("site", where).Msg("thread-safety violation observed by host")
	})
}

type cabiThreadSafetyError struct{ Where string }

func (e *cabiThreadSafetyError) Error() string {
	return "thread-safety violation: " + e.Where
}

// ThreadSafetyCheck reads and clears the first-writer-wins error slot.
func (h *Host) ThreadSafetyCheck() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.errSlot
	h.errSlot = nil
	h.errOnce = sync.Once{}
	return err
}

func (h *Host) isMainThread() bool {
	return osthread.Current() == h.mainThreadID
}

func (h *Host) isAudioThreadFor(pluginPtr unsafe.Pointer) bool {
	st := h.stateFor(pluginPtr)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.audioThreadSet && st.audioThreadID == osthread.Current()
}

func hostFromData(cHost *C.clap_host_t) *Host {
	if cHost == nil {
		return nil
	}
	h := cgo.Handle(uintptr(cHost.host_data)).Value().(*Host)
	return h
}

// assertMainThreadOrRecord checks the calling thread is the main thread,
// recording a thread-safety violation (not panicking) on mismatch, since
// the violator is the plugin, not the harness.
func (h *Host) assertMainThreadOrRecord(site string) {
	if !h.isMainThread() {
		h.recordThreadViolation(site + ": called off main thread")
	}
}

func (h *Host) assertNotAudioThread(site string, pluginPtr unsafe.Pointer) {
	if h.isAudioThreadFor(pluginPtr) {
		h.recordThreadViolation(site + ": must not be called on audio thread")
	}
}

//export clapcheckHostGetExtension
func clapcheckHostGetExtension(cHost *C.clap_host_t, id *C.char) unsafe.Pointer {
	h := hostFromData(cHost)
	if h == nil || id == nil {
		return nil
	}
	name := C.GoString(id)
	switch name {
	case C.CLAP_EXT_LOG:
		return unsafe.Pointer(h.logExt)
	case C.CLAP_EXT_THREAD_CHECK:
		return unsafe.Pointer(h.threadCheckExt)
	case C.CLAP_EXT_AUDIO_PORTS:
		return unsafe.Pointer(h.audioPortsExt)
	case C.CLAP_EXT_NOTE_PORTS:
		return unsafe.Pointer(h.notePortsExt)
	case C.CLAP_EXT_PARAMS:
		return unsafe.Pointer(h.paramsExt)
	case C.CLAP_EXT_STATE:
		return unsafe.Pointer(h.stateExt)
	default:
		return nil
	}
}

//export clapcheckHostRequestRestart
func clapcheckHostRequestRestart(cHost *C.clap_host_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	// request_restart can land from the plugin's audio thread; a panic
	// here must not unwind back across the cgo boundary into the plugin.
	if err := cabi.Invoke("host.request_restart", func() {
		h.assertMainThreadOrRecord("request_restart")
		// Best-effort: mark every registered instance, since the plugin
		// passes no instance pointer here. In practice a host tracks a
		// single instance per call site; the validator drives one at a time.
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, st := range h.instances {
			st.Pending.RequestedRestart.Store(true)
		}
	}); err != nil {
		log.Error().Err(err).Msg("host.request_restart")
	}
}

//export clapcheckHostRequestProcess
func clapcheckHostRequestProcess(cHost *C.clap_host_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	if err := cabi.Invoke("host.request_process", func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, st := range h.instances {
			st.Pending.RequestedProcess.Store(true)
		}
	}); err != nil {
		log.Error().Err(err).Msg("host.request_process")
	}
}

//export clapcheckHostRequestCallback
func clapcheckHostRequestCallback(cHost *C.clap_host_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	if err := cabi.Invoke("host.request_callback", func() {
		h.assertMainThreadOrRecord("request_callback")
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, st := range h.instances {
			st.Pending.RequestedCallback.Store(true)
		}
	}); err != nil {
		log.Error().Err(err).Msg("host.request_callback")
	}
}

//export clapcheckHostLog
func clapcheckHostLog(cHost *C.clap_host_t, severity C.int32_t, msg *C.char) {
	message := C.GoString(msg)
	ev := log.Info()
	switch severity {
	case C.CLAP_LOG_DEBUG:
		ev = log.Debug()
	case C.CLAP_LOG_WARNING:
		ev = log.Warn()
	case C.CLAP_LOG_ERROR, C.CLAP_LOG_FATAL, C.CLAP_LOG_PLUGIN_MISBEHAVING:
		ev = log.Error()
	case C.CLAP_LOG_HOST_MISBEHAVING:
		ev = log.Error()
	}
	ev.Str("source", "plugin").Msg(message)
}

//export clapcheckHostIsMainThread
func clapcheckHostIsMainThread(cHost *C.clap_host_t) C.bool {
	h := hostFromData(cHost)
	if h == nil {
		return C.bool(false)
	}
	return C.bool(h.isMainThread())
}

//export clapcheckHostIsAudioThread
func clapcheckHostIsAudioThread(cHost *C.clap_host_t) C.bool {
	h := hostFromData(cHost)
	if h == nil {
		return C.bool(false)
	}
	// The thread-check extension has no instance pointer either; it
	// answers for "the" audio thread of whichever instance currently has
	// one registered and matches the calling thread.
	h.mu.Lock()
	defer h.mu.Unlock()
	tid := osthread.Current()
	for _, st := range h.instances {
		st.mu.Lock()
		match := st.audioThreadSet && st.audioThreadID == tid
		st.mu.Unlock()
		if match {
			return C.bool(true)
		}
	}
	return C.bool(false)
}

//export clapcheckHostAudioPortsIsRescanFlagSupported
func clapcheckHostAudioPortsIsRescanFlagSupported(cHost *C.clap_host_t, flag C.uint32_t) C.bool {
	h := hostFromData(cHost)
	if h == nil {
		return C.bool(false)
	}
	h.assertMainThreadOrRecord("audio_ports.is_rescan_flag_supported")
	return C.bool(true)
}

//export clapcheckHostAudioPortsRescan
func clapcheckHostAudioPortsRescan(cHost *C.clap_host_t, flags C.uint32_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	h.assertMainThreadOrRecord("audio_ports.rescan")
}

//export clapcheckHostNotePortsSupportedDialects
func clapcheckHostNotePortsSupportedDialects(cHost *C.clap_host_t) C.uint32_t {
	return C.uint32_t(C.CLAP_NOTE_DIALECT_CLAP | C.CLAP_NOTE_DIALECT_MIDI | C.CLAP_NOTE_DIALECT_MIDI_MPE)
}

//export clapcheckHostNotePortsRescan
func clapcheckHostNotePortsRescan(cHost *C.clap_host_t, flags C.uint32_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	h.assertMainThreadOrRecord("note_ports.rescan")
}

//export clapcheckHostParamsRescan
func clapcheckHostParamsRescan(cHost *C.clap_host_t, flags C.uint32_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	h.assertMainThreadOrRecord("params.rescan")
}

//export clapcheckHostParamsClear
func clapcheckHostParamsClear(cHost *C.clap_host_t, paramID C.clap_id, flags C.uint32_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	h.assertMainThreadOrRecord("params.clear")
}

//export clapcheckHostParamsRequestFlush
func clapcheckHostParamsRequestFlush(cHost *C.clap_host_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	// params.request_flush may be called from any thread except the
	// audio thread; we don't have the instance pointer here so we check
	// it against every registered instance.
	h.mu.Lock()
	tid := osthread.Current()
	for ptr, st := range h.instances {
		st.mu.Lock()
		onAudio := st.audioThreadSet && st.audioThreadID == tid
		st.mu.Unlock()
		if onAudio {
			h.mu.Unlock()
			h.assertNotAudioThread("params.request_flush", ptr)
			return
		}
	}
	h.mu.Unlock()
}

//export clapcheckHostStateMarkDirty
func clapcheckHostStateMarkDirty(cHost *C.clap_host_t) {
	h := hostFromData(cHost)
	if h == nil {
		return
	}
	h.assertMainThreadOrRecord("state.mark_dirty")
}
