// Package ext implements typed, validating wrappers over the plugin
// extensions the harness drives: audio-ports, note-ports, params and
// state (§4.5).
package ext

/*
#include "../cabi/clap.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/clapcheck/clapcheck/internal/cabi"
)

// AudioPortInfo mirrors clap_audio_port_info_t for one port.
type AudioPortInfo struct {
	ID           uint32
	Name         string
	ChannelCount uint32
	IsMain       bool
	PortType     string
}

// AudioPortsConfig is the full input/output port layout of a plugin.
type AudioPortsConfig struct {
	Inputs  []AudioPortInfo
	Outputs []AudioPortInfo
}

// AudioPorts wraps clap_plugin_audio_ports_t.
type AudioPorts struct {
	ext *C.clap_plugin_audio_ports_t
}

// NewAudioPorts constructs the wrapper from a non-null extension pointer.
func NewAudioPorts(p unsafe.Pointer) *AudioPorts {
	if p == nil {
		return nil
	}
	return &AudioPorts{ext: (*C.clap_plugin_audio_ports_t)(p)}
}

// Config enumerates every input and output port.
func (a *AudioPorts) Config(plugin unsafe.Pointer) (AudioPortsConfig, error) {
	cPlugin := (*C.clap_plugin_t)(plugin)
	cfg := AudioPortsConfig{}

	inCount := uint32(a.ext.count(cPlugin, C.bool(true)))
	for idx := uint32(0); idx < inCount; idx++ {
		info, err := a.getPort(cPlugin, idx, true)
		if err != nil {
			return cfg, err
		}
		cfg.Inputs = append(cfg.Inputs, info)
	}

	outCount := uint32(a.ext.count(cPlugin, C.bool(false)))
	for idx := uint32(0); idx < outCount; idx++ {
		info, err := a.getPort(cPlugin, idx, false)
		if err != nil {
			return cfg, err
		}
		cfg.Outputs = append(cfg.Outputs, info)
	}

	return cfg, nil
}

func (a *AudioPorts) getPort(plugin *C.clap_plugin_t, idx uint32, isInput bool) (AudioPortInfo, error) {
	var raw C.clap_audio_port_info_t
	if !bool(a.ext.get(plugin, C.uint32_t(idx), C.bool(isInput), &raw)) {
		return AudioPortInfo{}, fmt.Errorf("audio_ports.get(%d, input=%v) returned false", idx, isInput)
	}
	return AudioPortInfo{
		ID:           uint32(raw.id),
		Name:         C.GoString(&raw.name[0]),
		ChannelCount: uint32(raw.channel_count),
		IsMain:       uint32(raw.flags)&uint32(C.CLAP_AUDIO_PORT_IS_MAIN) != 0,
		PortType:     cabi.GoStringOrEmpty(raw.port_type),
	}, nil
}
