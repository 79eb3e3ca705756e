package presets

/*
#include "../cabi/clap.h"
#include <stdlib.h>
#include "_cgo_export.h"

static void clapcheck_install_receiver(clap_preset_discovery_metadata_receiver_t *r) {
	r->on_error        = clapcheckReceiverOnError;
	r->begin_preset     = clapcheckReceiverBeginPreset;
	r->add_plugin_id    = clapcheckReceiverAddPluginID;
	r->set_soundpack_id = clapcheckReceiverSetSoundpackID;
	r->set_flags        = clapcheckReceiverSetFlags;
	r->add_creator      = clapcheckReceiverAddCreator;
	r->set_description  = clapcheckReceiverSetDescription;
	r->set_timestamps   = clapcheckReceiverSetTimestamps;
	r->add_feature      = clapcheckReceiverAddFeature;
	r->add_extra_info   = clapcheckReceiverAddExtraInfo;
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"strings"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
)

// PluginID ties a preset to a plugin via one of its ABIs (§4.7). abi is
// almost always "clap"; any other casing is a malformed declaration.
type PluginID struct {
	ABI string
	ID  string
}

// Preset is one fully-received preset's metadata.
type Preset struct {
	Name            string
	LoadKey         string
	PluginIDs       []PluginID
	SoundpackID     string
	Flags           uint32
	Creators        []string
	Description     string
	HasTimestamps   bool
	CreationTime    uint64
	ModificationTime uint64
	Features        []string
	ExtraInfo       map[string]string
}

// Receiver drives the metadata-receiver state machine for one
// get_metadata() call. A receiver is single-shot: once get_metadata
// returns, Presets() reports every preset begin_preset'd along the way.
//
// Per-preset invariants enforced here, not deferred to a later pass:
//   - begin_preset's load_key must be empty when the call describes a
//     single-file preset location and non-empty when it describes a
//     container (§4.7); the container-ness is supplied by the caller,
//     since the receiver itself cannot see the location kind.
//   - end-of-preset requires at least one add_plugin_id call.
//   - set_timestamps may be called at most once per preset.
//   - an "abi" that differs from "clap" only in case is flagged, since
//     CLAP plugin IDs are case-sensitive and a typo'd ABI silently
//     orphans the preset.
type Receiver struct {
	cRecv    *C.clap_preset_discovery_metadata_receiver_t
	handle   cgo.Handle
	isContainer bool

	presets []Preset
	cur     *Preset
	curSet  bool // set_timestamps already called for cur
	err     error
}

// NewReceiver allocates a pinned receiver. isContainer tells the
// receiver whether the location being scanned is a container (multiple
// presets per location, requiring a non-empty load_key) or a
// single-file location (load_key must stay empty).
func NewReceiver(isContainer bool) *Receiver {
	r := &Receiver{isContainer: isContainer}
	r.cRecv = (*C.clap_preset_discovery_metadata_receiver_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_preset_discovery_metadata_receiver_t{}))))
	r.handle = cgo.NewHandle(r)
	r.cRecv.receiver_data = unsafe.Pointer(uintptr(r.handle))
	C.clapcheck_install_receiver(r.cRecv)
	return r
}

// Ptr returns the raw clap_preset_discovery_metadata_receiver_t pointer.
func (r *Receiver) Ptr() unsafe.Pointer { return unsafe.Pointer(r.cRecv) }

// Close releases the pinned allocation.
func (r *Receiver) Close() {
	C.free(unsafe.Pointer(r.cRecv))
	r.handle.Delete()
}

// Presets returns every preset completed so far and any recorded error.
// Call after get_metadata returns; the preset still open at that point
// (the last one begun) is completed and included, and is checked for a
// plugin id like every other preset.
func (r *Receiver) Presets() ([]Preset, error) {
	r.finishCurrent()
	return r.presets, r.err
}

func (r *Receiver) recordErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Receiver) finishCurrent() {
	if r.cur == nil {
		return
	}
	if len(r.cur.PluginIDs) == 0 {
		r.recordErr(fmt.Errorf("presets: preset %q ended with no plugin id declared", r.cur.Name))
	}
	r.presets = append(r.presets, *r.cur)
	r.cur = nil
	r.curSet = false
}

func receiverFromData(cRecv *C.clap_preset_discovery_metadata_receiver_t) *Receiver {
	if cRecv == nil {
		return nil
	}
	return cgo.Handle(uintptr(cRecv.receiver_data)).Value().(*Receiver)
}

//export clapcheckReceiverOnError
func clapcheckReceiverOnError(cRecv *C.clap_preset_discovery_metadata_receiver_t, osError C.int32_t, msg *C.char) {
	r := receiverFromData(cRecv)
	if r == nil {
		return
	}
	r.recordErr(fmt.Errorf("presets: provider reported error %d: %s", int32(osError), cabi.GoStringOrEmpty(msg)))
}

//export clapcheckReceiverBeginPreset
func clapcheckReceiverBeginPreset(cRecv *C.clap_preset_discovery_metadata_receiver_t, name, loadKey *C.char) C.bool {
	r := receiverFromData(cRecv)
	if r == nil {
		return C.bool(false)
	}
	r.finishCurrent()

	key := cabi.GoStringOrEmpty(loadKey)
	if r.isContainer && key == "" {
		r.recordErr(fmt.Errorf("presets: container location requires a non-empty load_key, preset %q had none", cabi.GoStringOrEmpty(name)))
		return C.bool(false)
	}
	if !r.isContainer && key != "" {
		r.recordErr(fmt.Errorf("presets: single-file location must not set a load_key, preset %q set %q", cabi.GoStringOrEmpty(name), key))
		return C.bool(false)
	}

	r.cur = &Preset{
		Name:      cabi.GoStringOrEmpty(name),
		LoadKey:   key,
		ExtraInfo: map[string]string{},
	}
	return C.bool(true)
}

//export clapcheckReceiverAddPluginID
func clapcheckReceiverAddPluginID(cRecv *C.clap_preset_discovery_metadata_receiver_t, abi, id *C.char) {
	r := receiverFromData(cRecv)
	if r == nil || r.cur == nil {
		return
	}
	abiStr := cabi.GoStringOrEmpty(abi)
	if abiStr != "clap" && strings.EqualFold(abiStr, "clap") {
		r.recordErr(fmt.Errorf("presets: preset %q declared abi %q, a case-typo of \"clap\"", r.cur.Name, abiStr))
	}
	r.cur.PluginIDs = append(r.cur.PluginIDs, PluginID{ABI: abiStr, ID: cabi.GoStringOrEmpty(id)})
}

//export clapcheckReceiverSetSoundpackID
func clapcheckReceiverSetSoundpackID(cRecv *C.clap_preset_discovery_metadata_receiver_t, id *C.char) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.SoundpackID = cabi.GoStringOrEmpty(id)
	}
}

//export clapcheckReceiverSetFlags
func clapcheckReceiverSetFlags(cRecv *C.clap_preset_discovery_metadata_receiver_t, flags C.uint32_t) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.Flags = uint32(flags)
	}
}

//export clapcheckReceiverAddCreator
func clapcheckReceiverAddCreator(cRecv *C.clap_preset_discovery_metadata_receiver_t, creator *C.char) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.Creators = append(r.cur.Creators, cabi.GoStringOrEmpty(creator))
	}
}

//export clapcheckReceiverSetDescription
func clapcheckReceiverSetDescription(cRecv *C.clap_preset_discovery_metadata_receiver_t, desc *C.char) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.Description = cabi.GoStringOrEmpty(desc)
	}
}

//export clapcheckReceiverSetTimestamps
func clapcheckReceiverSetTimestamps(cRecv *C.clap_preset_discovery_metadata_receiver_t, creation, modification C.uint64_t) {
	r := receiverFromData(cRecv)
	if r == nil || r.cur == nil {
		return
	}
	if r.curSet {
		r.recordErr(fmt.Errorf("presets: preset %q called set_timestamps more than once", r.cur.Name))
		return
	}
	r.curSet = true
	r.cur.HasTimestamps = true
	r.cur.CreationTime = uint64(creation)
	r.cur.ModificationTime = uint64(modification)
}

//export clapcheckReceiverAddFeature
func clapcheckReceiverAddFeature(cRecv *C.clap_preset_discovery_metadata_receiver_t, feature *C.char) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.Features = append(r.cur.Features, cabi.GoStringOrEmpty(feature))
	}
}

//export clapcheckReceiverAddExtraInfo
func clapcheckReceiverAddExtraInfo(cRecv *C.clap_preset_discovery_metadata_receiver_t, key, value *C.char) {
	if r := receiverFromData(cRecv); r != nil && r.cur != nil {
		r.cur.ExtraInfo[cabi.GoStringOrEmpty(key)] = cabi.GoStringOrEmpty(value)
	}
}
