package testcases

import (
	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/runner"
)

func init() {
	runner.Register(runner.TestCase{
		Name:        "audio-ports-config",
		Description: "audio-ports extension reports a self-consistent port layout",
		Plugin:      audioPortsConfig,
	})
	runner.Register(runner.TestCase{
		Name:        "note-ports-config",
		Description: "note-ports extension reports a self-consistent dialect configuration",
		Plugin:      notePortsConfig,
	})
	runner.Register(runner.TestCase{
		Name:        "has-category",
		Description: "plugin descriptor declares at least one recognized category feature",
		Plugin:      hasCategory,
	})
}

func audioPortsConfig(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		ap := audioPortsExt(inst)
		if ap == nil {
			return skipf("plugin does not implement clap.audio-ports")
		}
		cfg, err := ap.Config(inst.CPluginPtr())
		if err != nil {
			return failf("%v", err)
		}
		if len(cfg.Inputs) == 0 && len(cfg.Outputs) == 0 {
			return failf("audio-ports extension is implemented but declares zero ports")
		}
		mainOut := 0
		for _, p := range cfg.Outputs {
			if p.IsMain {
				mainOut++
			}
		}
		if len(cfg.Outputs) > 0 && mainOut != 1 {
			return failf("expected exactly one main output port, found %d", mainOut)
		}
		return runner.Success, ""
	})
}

func notePortsConfig(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		np := notePortsExt(inst)
		if np == nil {
			return skipf("plugin does not implement clap.note-ports")
		}
		if _, err := np.Config(inst.CPluginPtr()); err != nil {
			return failf("%v", err)
		}
		return runner.Success, ""
	})
}

// knownCategories lists the plugin.category features every conforming
// plugin is expected to pick at least one of.
var knownCategories = map[string]bool{
	"instrument": true, "audio-effect": true, "note-effect": true,
	"analyzer": true, "synthesizer": true, "sampler": true,
	"drum-machine": true, "filter": true, "phaser": true, "equalizer": true,
	"deesser": true, "phase-vocoder": true, "granular": true,
	"frequency-shifter": true, "pitch-shifter": true, "distortion": true,
	"transient-shaper": true, "compressor": true, "limiter": true,
	"flanger": true, "chorus": true, "delay": true, "reverb": true,
	"tremolo": true, "glitch": true, "utility": true, "pitch-correction": true,
	"restoration": true, "multi-effects": true, "mixing": true, "mastering": true,
}

func hasCategory(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		desc := inst.Descriptor()
		for _, f := range desc.Features {
			if knownCategories[f] {
				return runner.Success, ""
			}
		}
		return runner.Warning, "no recognized category feature found in descriptor.features"
	})
}
