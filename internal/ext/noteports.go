package ext

/*
#include "../cabi/clap.h"
*/
import "C"

import (
	"fmt"
	"math/bits"
	"unsafe"
)

// NotePortInfo mirrors clap_note_port_info_t for one port.
type NotePortInfo struct {
	ID                 uint32
	Name               string
	PreferredDialect   uint32
	SupportedDialects  uint32
}

// NotePortsConfig is the full input/output note-port layout.
type NotePortsConfig struct {
	Inputs  []NotePortInfo
	Outputs []NotePortInfo
}

// NotePorts wraps clap_plugin_note_ports_t.
type NotePorts struct {
	ext *C.clap_plugin_note_ports_t
}

// NewNotePorts constructs the wrapper from a non-null extension pointer.
func NewNotePorts(p unsafe.Pointer) *NotePorts {
	if p == nil {
		return nil
	}
	return &NotePorts{ext: (*C.clap_plugin_note_ports_t)(p)}
}

// Config enumerates every note port and validates the dialect contract:
// exactly one preferred-dialect bit, and a non-empty supported-dialect
// set that includes the preferred bit (§4.5).
func (n *NotePorts) Config(plugin unsafe.Pointer) (NotePortsConfig, error) {
	cPlugin := (*C.clap_plugin_t)(plugin)
	cfg := NotePortsConfig{}

	inCount := uint32(n.ext.count(cPlugin, C.bool(true)))
	for idx := uint32(0); idx < inCount; idx++ {
		info, err := n.getPort(cPlugin, idx, true)
		if err != nil {
			return cfg, err
		}
		cfg.Inputs = append(cfg.Inputs, info)
	}

	outCount := uint32(n.ext.count(cPlugin, C.bool(false)))
	for idx := uint32(0); idx < outCount; idx++ {
		info, err := n.getPort(cPlugin, idx, false)
		if err != nil {
			return cfg, err
		}
		cfg.Outputs = append(cfg.Outputs, info)
	}

	return cfg, nil
}

func (n *NotePorts) getPort(plugin *C.clap_plugin_t, idx uint32, isInput bool) (NotePortInfo, error) {
	var raw C.clap_note_port_info_t
	if !bool(n.ext.get(plugin, C.uint32_t(idx), C.bool(isInput), &raw)) {
		return NotePortInfo{}, fmt.Errorf("note_ports.get(%d, input=%v) returned false", idx, isInput)
	}
	info := NotePortInfo{
		ID:                uint32(raw.id),
		Name:              C.GoString(&raw.name[0]),
		PreferredDialect:  uint32(raw.preferred_dialect),
		SupportedDialects: uint32(raw.supported_dialects),
	}
	if bits.OnesCount32(info.PreferredDialect) != 1 {
		return info, fmt.Errorf("note port %d (input=%v): preferred_dialect must have exactly one bit set, got 0x%x", idx, isInput, info.PreferredDialect)
	}
	if info.SupportedDialects == 0 {
		return info, fmt.Errorf("note port %d (input=%v): supported_dialects must be non-empty", idx, isInput)
	}
	if info.SupportedDialects&info.PreferredDialect == 0 {
		return info, fmt.Errorf("note port %d (input=%v): supported_dialects does not include the preferred dialect", idx, isInput)
	}
	return info, nil
}
