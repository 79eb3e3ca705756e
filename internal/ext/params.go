package ext

/*
#include "../cabi/clap.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"sort"
	"strings"
	"unsafe"
)

// ParamInfo mirrors clap_param_info_t plus the module-path validation
// from §4.5.
type ParamInfo struct {
	ID      uint32
	Name    string
	Module  string
	Cookie  unsafe.Pointer
	Min     float64
	Max     float64
	Default float64
	Flags   uint32
}

const (
	paramFlagStepped      = uint32(C.CLAP_PARAM_IS_STEPPED)
	paramFlagBypass       = uint32(C.CLAP_PARAM_IS_BYPASS)
	paramFlagAutomatable  = uint32(C.CLAP_PARAM_IS_AUTOMATABLE)
	paramFlagModulatable  = uint32(C.CLAP_PARAM_IS_MODULATABLE)
)

func (p ParamInfo) IsStepped() bool     { return p.Flags&paramFlagStepped != 0 }
func (p ParamInfo) IsBypass() bool      { return p.Flags&paramFlagBypass != 0 }
func (p ParamInfo) IsAutomatable() bool { return p.Flags&paramFlagAutomatable != 0 }
func (p ParamInfo) IsModulatable() bool { return p.Flags&paramFlagModulatable != 0 }

var perNoteKeyChannelPortAutomationMask = uint32(C.CLAP_PARAM_IS_AUTOMATABLE_PER_NOTE_ID) |
	uint32(C.CLAP_PARAM_IS_AUTOMATABLE_PER_KEY) | uint32(C.CLAP_PARAM_IS_AUTOMATABLE_PER_CHANNEL) |
	uint32(C.CLAP_PARAM_IS_AUTOMATABLE_PER_PORT)

var perNoteKeyChannelPortModulationMask = uint32(C.CLAP_PARAM_IS_MODULATABLE_PER_NOTE_ID) |
	uint32(C.CLAP_PARAM_IS_MODULATABLE_PER_KEY) | uint32(C.CLAP_PARAM_IS_MODULATABLE_PER_CHANNEL) |
	uint32(C.CLAP_PARAM_IS_MODULATABLE_PER_PORT)

// Params wraps clap_plugin_params_t.
type Params struct {
	ext     *C.clap_plugin_params_t
	plugin  *C.clap_plugin_t
}

// NewParams constructs the wrapper from a non-null extension pointer.
func NewParams(p, plugin unsafe.Pointer) *Params {
	if p == nil {
		return nil
	}
	return &Params{ext: (*C.clap_plugin_params_t)(p), plugin: (*C.clap_plugin_t)(plugin)}
}

// Count returns the number of parameters.
func (p *Params) Count() uint32 {
	return uint32(p.ext.count(p.plugin))
}

// Info builds the stable-ID -> info mapping as a slice ordered by stable
// ID, running every validation listed in §4.5.
func (p *Params) Info() ([]ParamInfo, error) {
	count := p.Count()
	out := make([]ParamInfo, 0, count)
	seen := make(map[uint32]bool, count)
	bypassSeen := false

	for idx := uint32(0); idx < count; idx++ {
		var raw C.clap_param_info_t
		if !bool(p.ext.get_info(p.plugin, C.uint32_t(idx), &raw)) {
			return nil, fmt.Errorf("params.get_info(%d) returned false", idx)
		}
		info := ParamInfo{
			ID:      uint32(raw.id),
			Name:    C.GoString(&raw.name[0]),
			Module:  C.GoString(&raw.module[0]),
			Cookie:  raw.cookie,
			Min:     float64(raw.min_value),
			Max:     float64(raw.max_value),
			Default: float64(raw.default_value),
			Flags:   uint32(raw.flags),
		}

		if seen[info.ID] {
			return nil, fmt.Errorf("duplicate parameter stable id %d", info.ID)
		}
		seen[info.ID] = true

		if info.Module != "" {
			if strings.HasPrefix(info.Module, "/") || strings.HasSuffix(info.Module, "/") {
				return nil, fmt.Errorf("param %d: module path %q must not start or end with '/'", info.ID, info.Module)
			}
			if strings.Contains(info.Module, "//") {
				return nil, fmt.Errorf("param %d: module path %q must not contain '//'", info.ID, info.Module)
			}
		}

		if info.Min > info.Max {
			return nil, fmt.Errorf("param %d: min %v > max %v", info.ID, info.Min, info.Max)
		}
		if info.Default < info.Min || info.Default > info.Max {
			return nil, fmt.Errorf("param %d: default %v outside [%v, %v]", info.ID, info.Default, info.Min, info.Max)
		}

		if info.IsStepped() {
			if info.Min != float64(int64(info.Min)) || info.Max != float64(int64(info.Max)) {
				return nil, fmt.Errorf("param %d: stepped parameter must have integral min/max, got [%v, %v]", info.ID, info.Min, info.Max)
			}
		}

		if info.IsBypass() {
			if bypassSeen {
				return nil, fmt.Errorf("param %d: a second bypass parameter was declared", info.ID)
			}
			bypassSeen = true
			if !info.IsStepped() {
				return nil, fmt.Errorf("param %d: bypass parameter must be stepped", info.ID)
			}
		}

		if info.Flags&perNoteKeyChannelPortAutomationMask != 0 && !info.IsAutomatable() {
			return nil, fmt.Errorf("param %d: per-note/key/channel/port automation flag requires the base automatable flag", info.ID)
		}
		if info.Flags&perNoteKeyChannelPortModulationMask != 0 && !info.IsModulatable() {
			return nil, fmt.Errorf("param %d: per-note/key/channel/port modulation flag requires the base modulatable flag", info.ID)
		}

		out = append(out, info)
	}

	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Get returns the current value of a parameter.
func (p *Params) Get(id uint32) (float64, bool) {
	var v C.double
	ok := bool(p.ext.get_value(p.plugin, C.clap_id(id), &v))
	return float64(v), ok
}

// ValueToText converts a value to display text. The returned bool
// mirrors the plugin's own success flag so callers can implement the
// "either none convert or all do" invariant (§8 invariant 11).
func (p *Params) ValueToText(id uint32, value float64) (string, bool) {
	buf := make([]C.char, 256)
	ok := bool(p.ext.value_to_text(p.plugin, C.clap_id(id), C.double(value), &buf[0], C.uint32_t(len(buf))))
	if !ok {
		return "", false
	}
	return C.GoString(&buf[0]), true
}

// TextToValue converts display text back to a value.
func (p *Params) TextToValue(id uint32, text string) (float64, bool) {
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))
	var v C.double
	ok := bool(p.ext.text_to_value(p.plugin, C.clap_id(id), cText, &v))
	return float64(v), ok
}

// Flush drives params.flush. Forbidden while activated (§4.5); callers
// are responsible for enforcing that at the call site since this
// wrapper has no view of lifecycle state.
func (p *Params) Flush(inEvents, outEvents unsafe.Pointer) {
	p.ext.flush(p.plugin, (*C.clap_input_events_t)(inEvents), (*C.clap_output_events_t)(outEvents))
}
