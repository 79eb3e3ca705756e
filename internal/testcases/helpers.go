package testcases

import (
	"fmt"

	"github.com/clapcheck/clapcheck/internal/ext"
	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/runner"
)

const (
	defaultSampleRate  = 48000.0
	defaultMinFrames   = 64
	defaultMaxFrames   = 4096
	defaultFramesCount = 256
)

// withInitializedInstance creates an instance, runs init, and guarantees
// Destroy on return so the host's instance map never leaks across test
// cases sharing one host.
func withInitializedInstance(ctx *runner.PluginContext, fn func(inst *pluginhost.Instance) (runner.Verdict, string)) (runner.Verdict, string) {
	inst, err := ctx.NewInstance()
	if err != nil {
		return runner.Failed, err.Error()
	}
	defer inst.Destroy()

	if !inst.Init() {
		return runner.Failed, "plugin.init returned false"
	}
	return fn(inst)
}

// withActivatedInstance additionally activates the plugin at a standard
// sample rate and frame-count range.
func withActivatedInstance(ctx *runner.PluginContext, fn func(inst *pluginhost.Instance) (runner.Verdict, string)) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		if !inst.Activate(defaultSampleRate, defaultMinFrames, defaultMaxFrames) {
			return runner.Failed, "plugin.activate returned false"
		}
		defer inst.Deactivate()
		return fn(inst)
	})
}

func paramsExt(inst *pluginhost.Instance) *ext.Params {
	p := inst.GetExtension("clap.params")
	if p == nil {
		return nil
	}
	return ext.NewParams(p, inst.CPluginPtr())
}

func audioPortsExt(inst *pluginhost.Instance) *ext.AudioPorts {
	p := inst.GetExtension("clap.audio-ports")
	if p == nil {
		return nil
	}
	return ext.NewAudioPorts(p)
}

func notePortsExt(inst *pluginhost.Instance) *ext.NotePorts {
	p := inst.GetExtension("clap.note-ports")
	if p == nil {
		return nil
	}
	return ext.NewNotePorts(p)
}

func stateExt(inst *pluginhost.Instance) *ext.State {
	p := inst.GetExtension("clap.state")
	if p == nil {
		return nil
	}
	return ext.NewState(p, inst.CPluginPtr())
}

func skipf(format string, args ...interface{}) (runner.Verdict, string) {
	return runner.Skipped, fmt.Sprintf(format, args...)
}

func failf(format string, args ...interface{}) (runner.Verdict, string) {
	return runner.Failed, fmt.Sprintf(format, args...)
}
