// Package pluginlib implements the shared-library loader (§4.3): it
// resolves a CLAP bundle to its entry point, drives the plugin factory's
// metadata, and instantiates plugins against a caller-supplied host.
package pluginlib

/*
#cgo LDFLAGS: -ldl
#include "../cabi/clap.h"
#include <dlfcn.h>
#include <stdlib.h>

static void *clapcheck_dlopen(const char *path, char **err) {
	void *handle = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	if (!handle) {
		*err = dlerror();
	}
	return handle;
}

static void *clapcheck_dlsym(void *handle, const char *symbol) {
	return dlsym(handle, symbol);
}

static int clapcheck_dlclose(void *handle) {
	return dlclose(handle);
}
*/
import "C"

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
	"github.com/rs/zerolog/log"
)

// Metadata is an immutable record of one plugin inside a library (§3).
type Metadata struct {
	ID          string
	Name        string
	Vendor      string
	URL         string
	ManualURL   string
	SupportURL  string
	Version     string
	Description string
	Features    []string
}

// Library owns a loaded shared object plus its absolute path. Exactly
// one init/deinit pair is executed across its lifetime.
type Library struct {
	Path string

	mu       sync.Mutex
	handle   unsafe.Pointer
	entry    *C.clap_plugin_entry_t
	factory  *C.clap_plugin_factory_t
	deinited bool
}

// Load resolves path to an absolute path, dlopens it, and calls the
// entry point's init. On Apple platforms a ".clap" bundle directory is
// resolved to its Contents/MacOS executable first.
func Load(path string) (*Library, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("pluginlib: resolve absolute path: %w", err)
	}

	loadPath := abs
	if runtime.GOOS == "darwin" {
		loadPath, err = resolveBundleExecutable(abs)
		if err != nil {
			return nil, err
		}
	}

	cPath := C.CString(loadPath)
	defer C.free(unsafe.Pointer(cPath))

	var dlErr *C.char
	handle := C.clapcheck_dlopen(cPath, &dlErr)
	if handle == nil {
		return nil, fmt.Errorf("pluginlib: dlopen %s: %s", loadPath, C.GoString(dlErr))
	}

	cEntrySym := C.CString("clap_entry")
	defer C.free(unsafe.Pointer(cEntrySym))
	entrySym := C.clapcheck_dlsym(handle, cEntrySym)
	if entrySym == nil {
		C.clapcheck_dlclose(handle)
		return nil, fmt.Errorf("pluginlib: %s does not export clap_entry", loadPath)
	}
	entry := (*C.clap_plugin_entry_t)(entrySym)
	if entry.init == nil || entry.deinit == nil || entry.get_factory == nil {
		C.clapcheck_dlclose(handle)
		return nil, fmt.Errorf("pluginlib: %s exports clap_entry with a null init, deinit or get_factory slot", loadPath)
	}

	cAbsPath := C.CString(abs)
	defer C.free(unsafe.Pointer(cAbsPath))
	if !bool(entry.init(cAbsPath)) {
		C.clapcheck_dlclose(handle)
		return nil, fmt.Errorf("pluginlib: clap_entry.init(%q) returned false", abs)
	}

	cFactoryID := C.CString(C.CLAP_PLUGIN_FACTORY_ID)
	defer C.free(unsafe.Pointer(cFactoryID))
	factoryPtr := entry.get_factory(cFactoryID)
	if !cabi.RequireNonNil("pluginlib.Load", map[string]unsafe.Pointer{"plugin_factory": factoryPtr}) {
		entry.deinit()
		C.clapcheck_dlclose(handle)
		return nil, fmt.Errorf("pluginlib: %s has no plugin factory", abs)
	}

	factory := (*C.clap_plugin_factory_t)(unsafe.Pointer(factoryPtr))
	if factory.get_plugin_count == nil || factory.get_plugin_descriptor == nil || factory.create_plugin == nil {
		entry.deinit()
		C.clapcheck_dlclose(handle)
		return nil, fmt.Errorf("pluginlib: %s's plugin factory is missing required vtable entries", abs)
	}

	return &Library{
		Path:    abs,
		handle:  handle,
		entry:   entry,
		factory: factory,
	}, nil
}

// Metadata enumerates the plugins declared by this library's factory.
func (l *Library) Metadata() []Metadata {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := uint32(l.factory.get_plugin_count(l.factory))
	out := make([]Metadata, 0, count)
	for i := uint32(0); i < count; i++ {
		desc := l.factory.get_plugin_descriptor(l.factory, C.uint32_t(i))
		if !cabi.RequireNonNil("pluginlib.Metadata", map[string]unsafe.Pointer{"descriptor": unsafe.Pointer(desc)}) {
			continue
		}
		out = append(out, metadataFromDescriptor(desc))
	}
	return out
}

func metadataFromDescriptor(desc *C.clap_plugin_descriptor_t) Metadata {
	var features []string
	if desc.features != nil {
		for i := 0; ; i++ {
			ptr := *(**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(desc.features)) + uintptr(i)*unsafe.Sizeof(desc.features)))
			if ptr == nil {
				break
			}
			features = append(features, C.GoString(ptr))
		}
	}
	return Metadata{
		ID:          C.GoString(desc.id),
		Name:        C.GoString(desc.name),
		Vendor:      normalizeEmpty(desc.vendor),
		URL:         normalizeEmpty(desc.url),
		ManualURL:   normalizeEmpty(desc.manual_url),
		SupportURL:  normalizeEmpty(desc.support_url),
		Version:     normalizeEmpty(desc.version),
		Description: normalizeEmpty(desc.description),
		Features:    features,
	}
}

func normalizeEmpty(p *C.char) string {
	if p == nil {
		return ""
	}
	return C.GoString(p)
}

// CreatePlugin calls the factory's create_plugin for the given ID
// against hostPtr (an unsafe.Pointer to a clap_host_t). A null return is
// reported as an error.
func (l *Library) CreatePlugin(id string, hostPtr unsafe.Pointer) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cID := C.CString(id)
	defer C.free(unsafe.Pointer(cID))

	plugin := l.factory.create_plugin(l.factory, (*C.clap_host_t)(hostPtr), cID)
	if !cabi.RequireNonNil("pluginlib.CreatePlugin", map[string]unsafe.Pointer{"plugin": unsafe.Pointer(plugin)}) {
		return nil, fmt.Errorf("pluginlib: create_plugin(%q) returned null", id)
	}
	return unsafe.Pointer(plugin), nil
}

// PresetDiscoveryFactory returns the preset-discovery factory pointer, if
// the library exposes one, else nil.
func (l *Library) PresetDiscoveryFactory() unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	cID := C.CString(C.CLAP_PRESET_DISCOVERY_FACTORY_ID)
	defer C.free(unsafe.Pointer(cID))
	return unsafe.Pointer(l.entry.get_factory(cID))
}

// Close calls deinit exactly once and unloads the shared object.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deinited {
		return nil
	}
	l.entry.deinit()
	l.deinited = true
	if ret := C.clapcheck_dlclose(l.handle); ret != 0 {
		log.Warn().Str("path", l.Path).Msg("dlclose reported a non-zero result")
	}
	return nil
}
