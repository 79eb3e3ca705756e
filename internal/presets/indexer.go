package presets

/*
#include "../cabi/clap.h"
#include <stdlib.h>
#include "_cgo_export.h"

static void clapcheck_install_indexer(clap_preset_discovery_indexer_t *idx) {
	idx->declare_filetype  = clapcheckIndexerDeclareFiletype;
	idx->declare_location  = clapcheckIndexerDeclareLocation;
	idx->declare_soundpack = clapcheckIndexerDeclareSoundpack;
	idx->get_extension     = clapcheckIndexerGetExtension;
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
	"github.com/clapcheck/clapcheck/internal/osthread"
)

// Filetype, SoundpackDecl and LocationDecl are the declarations a
// provider registers with the indexer during init() (§4.7).
type Filetype struct {
	Name        string
	Description string
	Extension   string
}

type LocationDecl struct {
	Name     string
	Location Location
	Flags    uint32
}

type SoundpackDecl struct {
	ID          string
	Name        string
	Description string
	HomepageURL string
	Vendor      string
	ImagePath   string
	Flags       uint32
}

// Indexer is a pinned object whose foreign vtable a provider calls back
// into during its init(). All callbacks must arrive on the thread that
// created the indexer; the first mismatch is recorded and surfaced after
// init() returns.
type Indexer struct {
	cIdx   *C.clap_preset_discovery_indexer_t
	handle cgo.Handle

	ownerThread int64

	mu         sync.Mutex
	filetypes  []Filetype
	locations  []LocationDecl
	soundpacks []SoundpackDecl
	err        error
}

// NewIndexer allocates a pinned indexer. Must be created on the thread
// that will call provider.init().
func NewIndexer(ownerThreadID int64) *Indexer {
	idx := &Indexer{ownerThread: ownerThreadID}
	idx.cIdx = (*C.clap_preset_discovery_indexer_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.clap_preset_discovery_indexer_t{}))))
	idx.cIdx.clap_version.major = 1
	idx.cIdx.clap_version.minor = 2
	idx.cIdx.name = C.CString("clapcheck")
	idx.cIdx.vendor = C.CString("clapcheck")
	idx.cIdx.url = C.CString("")
	idx.cIdx.version = C.CString("1.0.0")

	idx.handle = cgo.NewHandle(idx)
	idx.cIdx.indexer_data = unsafe.Pointer(uintptr(idx.handle))
	C.clapcheck_install_indexer(idx.cIdx)
	return idx
}

// Ptr returns the raw clap_preset_discovery_indexer_t pointer.
func (idx *Indexer) Ptr() unsafe.Pointer { return unsafe.Pointer(idx.cIdx) }

// Close releases the pinned allocation.
func (idx *Indexer) Close() {
	C.free(unsafe.Pointer(idx.cIdx.name))
	C.free(unsafe.Pointer(idx.cIdx.vendor))
	C.free(unsafe.Pointer(idx.cIdx.url))
	C.free(unsafe.Pointer(idx.cIdx.version))
	C.free(unsafe.Pointer(idx.cIdx))
	idx.handle.Delete()
}

// Harvest returns the declarations collected during init(), and any
// pending validation error recorded along the way.
func (idx *Indexer) Harvest() ([]Filetype, []LocationDecl, []SoundpackDecl, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.filetypes, idx.locations, idx.soundpacks, idx.err
}

func (idx *Indexer) recordErr(err error) {
	idx.mu.Lock()
	if idx.err == nil {
		idx.err = err
	}
	idx.mu.Unlock()
}

func (idx *Indexer) checkThread(site string) bool {
	if osthread.Current() != idx.ownerThread {
		idx.recordErr(fmt.Errorf("presets: %s called from a thread other than the one that created the indexer", site))
		return false
	}
	return true
}

func indexerFromData(cIdx *C.clap_preset_discovery_indexer_t) *Indexer {
	if cIdx == nil {
		return nil
	}
	return cgo.Handle(uintptr(cIdx.indexer_data)).Value().(*Indexer)
}

//export clapcheckIndexerDeclareFiletype
func clapcheckIndexerDeclareFiletype(cIdx *C.clap_preset_discovery_indexer_t, ft *C.clap_preset_discovery_filetype_t) C.bool {
	idx := indexerFromData(cIdx)
	if idx == nil || !idx.checkThread("declare_filetype") {
		return C.bool(false)
	}
	ext := cabi.GoStringOrEmpty(ft.file_extension)
	if ext != "" && ext[0] == '.' {
		idx.recordErr(fmt.Errorf("presets: file extension %q must not start with '.'", ext))
		return C.bool(false)
	}
	idx.mu.Lock()
	idx.filetypes = append(idx.filetypes, Filetype{
		Name:        cabi.GoStringOrEmpty(ft.name),
		Description: cabi.GoStringOrEmpty(ft.description),
		Extension:   ext,
	})
	idx.mu.Unlock()
	return C.bool(true)
}

//export clapcheckIndexerDeclareLocation
func clapcheckIndexerDeclareLocation(cIdx *C.clap_preset_discovery_indexer_t, loc *C.clap_preset_discovery_location_t) C.bool {
	idx := indexerFromData(cIdx)
	if idx == nil || !idx.checkThread("declare_location") {
		return C.bool(false)
	}

	var parsed Location
	var err error
	if uint32(loc.kind) == uint32(C.CLAP_PRESET_DISCOVERY_LOCATION_PLUGIN) {
		parsed = Location{IsPlugin: true}
	} else {
		parsed, err = ParseLocation(cabi.GoStringOrEmpty(loc.location))
		if err != nil {
			idx.recordErr(err)
			return C.bool(false)
		}
	}

	idx.mu.Lock()
	idx.locations = append(idx.locations, LocationDecl{
		Name:     cabi.GoStringOrEmpty(loc.name),
		Location: parsed,
		Flags:    uint32(loc.flags),
	})
	idx.mu.Unlock()
	return C.bool(true)
}

//export clapcheckIndexerDeclareSoundpack
func clapcheckIndexerDeclareSoundpack(cIdx *C.clap_preset_discovery_indexer_t, sp *C.clap_preset_discovery_soundpack_t) C.bool {
	idx := indexerFromData(cIdx)
	if idx == nil || !idx.checkThread("declare_soundpack") {
		return C.bool(false)
	}
	id := cabi.GoStringOrEmpty(sp.id)
	if id == "" {
		idx.recordErr(fmt.Errorf("presets: soundpack must have a non-empty id"))
		return C.bool(false)
	}
	idx.mu.Lock()
	idx.soundpacks = append(idx.soundpacks, SoundpackDecl{
		ID:          id,
		Name:        cabi.GoStringOrEmpty(sp.name),
		Description: cabi.GoStringOrEmpty(sp.description),
		HomepageURL: cabi.GoStringOrEmpty(sp.homepage_url),
		Vendor:      cabi.GoStringOrEmpty(sp.vendor),
		ImagePath:   cabi.GoStringOrEmpty(sp.image_path),
		Flags:       uint32(sp.flags),
	})
	idx.mu.Unlock()
	return C.bool(true)
}

//export clapcheckIndexerGetExtension
func clapcheckIndexerGetExtension(cIdx *C.clap_preset_discovery_indexer_t, id *C.char) unsafe.Pointer {
	// clapcheck implements no indexer-side extensions today.
	return nil
}
