// Package pluginhost implements the plugin instance and its lifecycle
// state machine (§4.4): a main-thread view and a non-shareable
// audio-thread view over a single foreign plugin handle.
package pluginhost

/*
#include "../cabi/clap.h"
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
	"github.com/clapcheck/clapcheck/internal/hostabi"
	"github.com/clapcheck/clapcheck/internal/pluginlib"
)

// Instance owns a single foreign plugin handle. It cannot outlive the
// library or host it references.
type Instance struct {
	mu      sync.Mutex
	cPlugin *C.clap_plugin_t
	lib     *pluginlib.Library
	host    *hostabi.Host
	status  Status

	// audioThreadTaken guards on_audio_thread against concurrent callers
	// designating two different goroutines as the audio thread.
	audioThreadTaken bool
}

// New creates a plugin instance via the library's factory.
func New(lib *pluginlib.Library, host *hostabi.Host, pluginID string) (*Instance, error) {
	ptr, err := lib.CreatePlugin(pluginID, host.Ptr())
	if err != nil {
		return nil, err
	}
	cPlugin := (*C.clap_plugin_t)(ptr)
	host.RegisterInstance(ptr)
	return &Instance{
		cPlugin: cPlugin,
		lib:     lib,
		host:    host,
		status:  Uninitialized,
	}, nil
}

func (i *Instance) transition(op string, from, to Status) {
	if i.status != from {
		err := &transitionError{From: i.status, To: to, Op: op}
		cabi.Bug("pluginhost.Instance."+op, "%s", err.Error())
	}
	i.status = to
}

func (i *Instance) requireAtLeast(op string, min Status) {
	if i.status < min {
		cabi.Bug("pluginhost.Instance."+op, "requires state >= %s, got %s", min, i.status)
	}
}

// Descriptor returns the descriptor attached to the underlying plugin
// handle, used to check consistency against the library's own metadata
// (§8 invariant 6).
func (i *Instance) Descriptor() pluginlib.Metadata {
	i.mu.Lock()
	defer i.mu.Unlock()
	desc := i.cPlugin.desc
	if desc == nil {
		cabi.Bug("pluginhost.Instance.Descriptor", "plugin.desc is null")
	}
	return metadataFromCDescriptor(desc)
}

func metadataFromCDescriptor(desc *C.clap_plugin_descriptor_t) pluginlib.Metadata {
	return pluginlib.Metadata{
		ID:          C.GoString(desc.id),
		Name:        C.GoString(desc.name),
		Vendor:      cabi.GoStringOrEmpty(desc.vendor),
		URL:         cabi.GoStringOrEmpty(desc.url),
		ManualURL:   cabi.GoStringOrEmpty(desc.manual_url),
		SupportURL:  cabi.GoStringOrEmpty(desc.support_url),
		Version:     cabi.GoStringOrEmpty(desc.version),
		Description: cabi.GoStringOrEmpty(desc.description),
		Features:    cabi.GoStringArray(desc.features),
	}
}

// CPluginPtr exposes the raw plugin pointer to the ext/process packages,
// which need it to call extension-specific vtable methods.
func (i *Instance) CPluginPtr() unsafe.Pointer { return unsafe.Pointer(i.cPlugin) }

// Init runs the one-shot Uninitialized -> Initialized transition.
func (i *Instance) Init() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transition("Init", Uninitialized, Initialized)
	return bool(i.cPlugin.init(i.cPlugin))
}

// Activate runs Initialized -> Activated.
func (i *Instance) Activate(sampleRate float64, minFrames, maxFrames uint32) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transition("Activate", Initialized, Activated)
	return bool(i.cPlugin.activate(i.cPlugin, C.double(sampleRate), C.uint32_t(minFrames), C.uint32_t(maxFrames)))
}

// Deactivate runs Activated -> Initialized.
func (i *Instance) Deactivate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transition("Deactivate", Activated, Initialized)
	i.cPlugin.deactivate(i.cPlugin)
}

// GetExtension may only be called after Init.
func (i *Instance) GetExtension(id string) unsafe.Pointer {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.requireAtLeast("GetExtension", Initialized)
	cID := cabi.CString(id)
	defer cabi.Free(unsafe.Pointer(cID))
	return unsafe.Pointer(i.cPlugin.get_extension(i.cPlugin, cID))
}

// Destroy calls the plugin's destroy. If still Processing, performs the
// implicit stop_processing + deactivate shutdown first (§3).
func (i *Instance) Destroy() {
	i.mu.Lock()
	if i.status == Processing {
		i.cPlugin.stop_processing(i.cPlugin)
		i.status = Activated
		i.host.UnregisterAudioThread(unsafe.Pointer(i.cPlugin))
	}
	if i.status == Activated {
		i.cPlugin.deactivate(i.cPlugin)
		i.status = Initialized
	}
	i.mu.Unlock()

	i.host.UnregisterInstance(unsafe.Pointer(i.cPlugin))
	i.cPlugin.destroy(i.cPlugin)
}

// AudioThread is the audio-thread view, obtained only through
// OnAudioThread; it is never shared across goroutines by construction —
// callers must not stash it outside the closure passed to OnAudioThread.
type AudioThread struct {
	inst *Instance
}

// OnAudioThread designates the calling goroutine's current OS thread as
// the audio thread for the duration of fn, registers its identity with
// the host, runs fn with an AudioThread view, and deregisters on return.
//
// The goroutine is locked to its OS thread for the duration so the
// identity registered with the host (an OS thread id) remains valid for
// every call fn makes into the plugin.
func (i *Instance) OnAudioThread(fn func(*AudioThread)) {
	i.mu.Lock()
	if i.audioThreadTaken {
		i.mu.Unlock()
		cabi.Bug("pluginhost.Instance.OnAudioThread", "audio thread already designated")
	}
	i.audioThreadTaken = true
	i.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	i.host.RegisterAudioThread(unsafe.Pointer(i.cPlugin))
	defer i.host.UnregisterAudioThread(unsafe.Pointer(i.cPlugin))

	defer func() {
		i.mu.Lock()
		i.audioThreadTaken = false
		i.mu.Unlock()
	}()

	fn(&AudioThread{inst: i})
}

// StartProcessing runs Activated -> Processing.
func (a *AudioThread) StartProcessing() bool {
	a.inst.mu.Lock()
	defer a.inst.mu.Unlock()
	a.inst.transition("StartProcessing", Activated, Processing)
	return bool(a.inst.cPlugin.start_processing(a.inst.cPlugin))
}

// StopProcessing runs Processing -> Activated.
func (a *AudioThread) StopProcessing() {
	a.inst.mu.Lock()
	defer a.inst.mu.Unlock()
	a.inst.transition("StopProcessing", Processing, Activated)
	a.inst.cPlugin.stop_processing(a.inst.cPlugin)
}

// Process calls the plugin's process callback; must be Processing.
func (a *AudioThread) Process(proc unsafe.Pointer) int32 {
	a.inst.mu.Lock()
	defer a.inst.mu.Unlock()
	a.inst.requireAtLeast("Process", Processing)
	if a.inst.status != Processing {
		cabi.Bug("pluginhost.AudioThread.Process", "not in Processing state")
	}
	return int32(a.inst.cPlugin.process(a.inst.cPlugin, (*C.clap_process_t)(proc)))
}

// GetExtension is the audio-thread-safe subset of extension lookups
// (the CLAP ABI permits get_extension from either thread after init, but
// callers here should prefer the main-thread view unless the extension
// is one explicitly documented as audio-thread safe).
func (a *AudioThread) GetExtension(id string) unsafe.Pointer {
	return a.inst.GetExtension(id)
}

// Status reports the current lifecycle state, for diagnostics.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}
