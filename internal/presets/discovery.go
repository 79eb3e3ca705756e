package presets

/*
#include "../cabi/clap.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
	"github.com/clapcheck/clapcheck/internal/osthread"
)

// ProviderDescriptor mirrors clap_preset_discovery_provider_descriptor_t.
type ProviderDescriptor struct {
	ID     string
	Name   string
	Vendor string
}

// Discover drives one full factory -> provider -> get_metadata cycle for
// every provider the factory exposes, on the calling goroutine's current
// OS thread (the caller must have called runtime.LockOSThread).
//
// factoryPtr is a *clap_preset_discovery_factory_t, typically obtained
// from pluginlib.Library.PresetDiscoveryFactory.
func Discover(factoryPtr unsafe.Pointer) ([]ProviderResult, error) {
	if factoryPtr == nil {
		return nil, fmt.Errorf("presets: library has no preset-discovery factory")
	}
	factory := (*C.clap_preset_discovery_factory_t)(factoryPtr)

	ownerThread := osthread.Current()
	count := uint32(factory.count(factory))

	var results []ProviderResult
	for i := uint32(0); i < count; i++ {
		desc := factory.get_descriptor(factory, C.uint32_t(i))
		if !cabi.RequireNonNil("presets.Discover", map[string]unsafe.Pointer{"descriptor": unsafe.Pointer(desc)}) {
			continue
		}
		pd := ProviderDescriptor{
			ID:     C.GoString(desc.id),
			Name:   C.GoString(desc.name),
			Vendor: normalizeEmpty(desc.vendor),
		}

		result, err := discoverOne(factory, pd, ownerThread)
		if err != nil {
			return results, fmt.Errorf("presets: provider %q: %w", pd.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ProviderResult is everything harvested from one provider: its
// declarations and the presets found at each declared location (file
// and plugin locations alike).
type ProviderResult struct {
	Descriptor ProviderDescriptor
	Filetypes  []Filetype
	Locations  []LocationDecl
	Soundpacks []SoundpackDecl
	Presets    map[string][]Preset // keyed by location name
}

func discoverOne(factory *C.clap_preset_discovery_factory_t, desc ProviderDescriptor, ownerThread int64) (ProviderResult, error) {
	idx := NewIndexer(ownerThread)
	defer idx.Close()

	cID := C.CString(desc.ID)
	defer free(cID)

	provider := factory.create(factory, (*C.clap_preset_discovery_indexer_t)(idx.Ptr()), cID)
	if !cabi.RequireNonNil("presets.discoverOne", map[string]unsafe.Pointer{"provider": unsafe.Pointer(provider)}) {
		return ProviderResult{}, fmt.Errorf("factory.create returned null")
	}
	defer provider.destroy(provider)

	if !bool(provider.init(provider)) {
		return ProviderResult{}, fmt.Errorf("provider.init returned false")
	}

	filetypes, locations, soundpacks, err := idx.Harvest()
	if err != nil {
		return ProviderResult{}, fmt.Errorf("init(): %w", err)
	}

	result := ProviderResult{
		Descriptor: desc,
		Filetypes:  filetypes,
		Locations:  locations,
		Soundpacks: soundpacks,
		Presets:    map[string][]Preset{},
	}

	for _, loc := range locations {
		isContainer := !loc.Location.IsPlugin && isLikelyContainer(loc.Location.Path)
		recv := NewReceiver(isContainer)

		var kind C.uint32_t
		var cLoc *C.char
		if loc.Location.IsPlugin {
			kind = C.uint32_t(C.CLAP_PRESET_DISCOVERY_LOCATION_PLUGIN)
		} else {
			kind = C.uint32_t(C.CLAP_PRESET_DISCOVERY_LOCATION_FILE)
			cLoc = C.CString(loc.Location.String())
		}

		ok := bool(provider.get_metadata(provider, kind, cLoc, (*C.clap_preset_discovery_metadata_receiver_t)(recv.Ptr())))
		if cLoc != nil {
			free(cLoc)
		}

		presets, pErr := recv.Presets()
		recv.Close()
		if !ok {
			return result, fmt.Errorf("get_metadata(%q) returned false", loc.Name)
		}
		if pErr != nil {
			return result, fmt.Errorf("get_metadata(%q): %w", loc.Name, pErr)
		}
		result.Presets[loc.Name] = presets
	}

	return result, nil
}

// isLikelyContainer reports whether path names a directory, which
// get_metadata treats as a container location requiring per-preset
// load keys. Providers pointing at a single file are single-file
// locations. A path that does not exist yet is treated as a single
// file, matching how a freshly declared-but-unscanned location reads.
func isLikelyContainer(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func free(p *C.char) { C.free(unsafe.Pointer(p)) }
