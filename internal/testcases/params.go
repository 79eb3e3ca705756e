package testcases

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/clapcheck/clapcheck/internal/ext"
	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/process"
	"github.com/clapcheck/clapcheck/internal/runner"
)

func init() {
	runner.Register(runner.TestCase{
		Name:        "converts-params-consistently",
		Description: "for each parameter, value-to-text and text-to-value round-trip to a fixed point across its min, max, and random values",
		Plugin:      convertsParamsConsistently,
	})
	runner.Register(runner.TestCase{
		Name:        "params-flush-equals-process",
		Description: "sending the same parameter-set events through params.flush and through process yields the same values and the same saved state",
		Plugin:      paramsFlushEqualsProcess,
	})
	runner.Register(runner.TestCase{
		Name:        "param-set-wrong-namespace",
		Description: "plugin ignores a param-value event sent on a non-core event space",
		Plugin:      paramSetWrongNamespace,
	})
}

// valuesPerParam is how many starting values convertsParamsConsistently
// probes per parameter: min, max, and four random values in range.
const valuesPerParam = 6

// convertsParamsConsistently drives the v -> text -> v' -> text' round
// trip for every parameter across a handful of starting values, and
// tracks how many of those conversions succeeded so a plugin that
// supports the conversion for only some of its parameters is caught.
func convertsParamsConsistently(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		p := paramsExt(inst)
		if p == nil {
			return skipf("plugin does not implement clap.params")
		}
		infos, err := p.Info()
		if err != nil {
			return failf("%v", err)
		}

		expectedConversions := len(infos) * valuesPerParam
		rng := rand.New(rand.NewSource(1))

		var numValueToText, numTextToValue int
		var sampleValueToTextFailure, sampleTextToValueFailure string

		for _, info := range infos {
			values := [valuesPerParam]float64{
				info.Min,
				info.Max,
				randInRange(rng, info.Min, info.Max),
				randInRange(rng, info.Min, info.Max),
				randInRange(rng, info.Min, info.Max),
				randInRange(rng, info.Min, info.Max),
			}

			for _, startingValue := range values {
				startingText, ok := p.ValueToText(info.ID, startingValue)
				if !ok {
					if sampleValueToTextFailure == "" {
						sampleValueToTextFailure = fmt.Sprintf("param %d (%q): value_to_text(%v)", info.ID, info.Name, startingValue)
					}
					break
				}
				numValueToText++

				reconvertedValue, ok := p.TextToValue(info.ID, startingText)
				if !ok {
					if sampleTextToValueFailure == "" {
						sampleTextToValueFailure = fmt.Sprintf("param %d (%q): text_to_value(%q)", info.ID, info.Name, startingText)
					}
					continue
				}
				numTextToValue++

				reconvertedText, ok := p.ValueToText(info.ID, reconvertedValue)
				if !ok {
					return failf("param %d (%q): value_to_text(%v) returned false on the second hop of %v -> %q -> %v -> ?", info.ID, info.Name, reconvertedValue, startingValue, startingText, reconvertedValue)
				}
				if startingText != reconvertedText {
					return failf("param %d (%q): converting %v to text, back to a value, and back to text again produced %q then %q, which do not match", info.ID, info.Name, startingValue, startingText, reconvertedText)
				}

				finalValue, ok := p.TextToValue(info.ID, reconvertedText)
				if !ok {
					return failf("param %d (%q): text_to_value(%q) returned false on the second hop of %v -> %q -> %v -> %q -> ?", info.ID, info.Name, reconvertedText, startingValue, startingText, reconvertedValue, reconvertedText)
				}
				if finalValue != reconvertedValue {
					return failf("param %d (%q): converting %v to text, to a value, to text, and back to a value produced %v then %v, which do not match", info.ID, info.Name, startingValue, reconvertedValue, finalValue)
				}
			}
		}

		if numValueToText != 0 && numValueToText != expectedConversions {
			return failf("value_to_text succeeded for %d out of %d conversions, expected either all or none (e.g. %s)", numValueToText, expectedConversions, sampleValueToTextFailure)
		}
		if numTextToValue != 0 && numTextToValue != expectedConversions {
			return failf("text_to_value succeeded for %d out of %d conversions, expected either all or none (e.g. %s)", numTextToValue, expectedConversions, sampleTextToValueFailure)
		}
		if numValueToText == 0 || numTextToValue == 0 {
			return runner.Skipped, "plugin's parameters do not support both value-to-text and text-to-value conversions"
		}
		return runner.Success, ""
	})
}

func randInRange(rng *rand.Rand, min, max float64) float64 {
	if min >= max {
		return min
	}
	return min + rng.Float64()*(max-min)
}

// paramsFlushEqualsProcess sends an identical parameter-set event per
// parameter through params.flush on one instance and through process on
// a second, and checks both land on the same values and the same saved
// state.
func paramsFlushEqualsProcess(ctx *runner.PluginContext) (runner.Verdict, string) {
	var infos []ext.ParamInfo
	verdict, reason := withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		p := paramsExt(inst)
		if p == nil {
			return skipf("plugin does not implement clap.params")
		}
		var err error
		infos, err = p.Info()
		if err != nil {
			return failf("%v", err)
		}
		if len(infos) == 0 {
			return skipf("plugin has no parameters")
		}
		return runner.Success, ""
	})
	if verdict != runner.Success {
		return verdict, reason
	}

	rng := rand.New(rand.NewSource(1))
	events := make([]process.Event, 0, len(infos))
	for _, info := range infos {
		events = append(events, process.NewParamValueEvent(info.ID, randInRange(rng, info.Min, info.Max), 0))
	}

	flushValues, flushState, verdict, reason := runParamsThroughFlush(ctx, events)
	if verdict != runner.Success {
		return verdict, reason
	}
	processValues, processState, verdict, reason := runParamsThroughProcess(ctx, events)
	if verdict != runner.Success {
		return verdict, reason
	}

	for _, info := range infos {
		fv, fok := flushValues[info.ID]
		pv, pok := processValues[info.ID]
		if fok != pok {
			return failf("param %d (%q): readable through get_value() after flush=%v but after process=%v", info.ID, info.Name, fok, pok)
		}
		if fok && fv != pv {
			return failf("param %d (%q): params.flush produced %v but an equivalent process() call produced %v for the same parameter-set event", info.ID, info.Name, fv, pv)
		}
	}

	if flushState != nil && processState != nil && !bytes.Equal(flushState, processState) {
		return failf("state.save() after params.flush differs from state.save() after an equivalent process() call (%d vs %d bytes)", len(flushState), len(processState))
	}
	return runner.Success, ""
}

func runParamsThroughFlush(ctx *runner.PluginContext, events []process.Event) (map[uint32]float64, []byte, runner.Verdict, string) {
	var values map[uint32]float64
	var saved []byte
	verdict, reason := withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		p := paramsExt(inst)
		if p == nil {
			return skipf("plugin does not implement clap.params")
		}

		queue := process.NewEventQueue(events)
		defer queue.Close()
		p.Flush(queue.InPtr(), queue.OutPtr())

		infos, err := p.Info()
		if err != nil {
			return failf("%v", err)
		}
		values = make(map[uint32]float64, len(infos))
		for _, info := range infos {
			if v, ok := p.Get(info.ID); ok {
				values[info.ID] = v
			}
		}

		if st := stateExt(inst); st != nil {
			data, err := st.Save()
			if err != nil {
				return failf("state.save after flush failed: %v", err)
			}
			saved = data
		}
		return runner.Success, ""
	})
	return values, saved, verdict, reason
}

func runParamsThroughProcess(ctx *runner.PluginContext, events []process.Event) (map[uint32]float64, []byte, runner.Verdict, string) {
	var values map[uint32]float64
	var saved []byte
	verdict, reason := withActivatedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		p := paramsExt(inst)
		if p == nil {
			return skipf("plugin does not implement clap.params")
		}

		cfg := process.Config{
			SampleRate:  defaultSampleRate,
			Tempo:       120,
			FramesCount: defaultFramesCount,
			Iterations:  1,
		}

		var runErr error
		inst.OnAudioThread(func(at *pluginhost.AudioThread) {
			if !at.StartProcessing() {
				runErr = fmt.Errorf("start_processing returned false")
				return
			}
			defer at.StopProcessing()

			driver := process.NewDriver(cfg)
			defer driver.Close()

			runErr = process.Run(driver, at.Process, func(it *process.Iteration) []process.Event {
				return events
			}, nil)
		})
		if runErr != nil {
			return failf("%v", runErr)
		}

		infos, err := p.Info()
		if err != nil {
			return failf("%v", err)
		}
		values = make(map[uint32]float64, len(infos))
		for _, info := range infos {
			if v, ok := p.Get(info.ID); ok {
				values[info.ID] = v
			}
		}

		if st := stateExt(inst); st != nil {
			data, err := st.Save()
			if err != nil {
				return failf("state.save after process failed: %v", err)
			}
			saved = data
		}
		return runner.Success, ""
	})
	return values, saved, verdict, reason
}

// paramSetWrongNamespace sends a param-value event tagged with a
// non-core space_id and checks the plugin ignores it rather than
// applying it to the addressed parameter; the check is observational
// (the value must be unchanged from before the event) since a plugin
// with no way to report "I ignored that" can only be judged by effect.
func paramSetWrongNamespace(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withActivatedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		p := paramsExt(inst)
		if p == nil {
			return skipf("plugin does not implement clap.params")
		}
		infos, err := p.Info()
		if err != nil {
			return failf("%v", err)
		}
		if len(infos) == 0 {
			return skipf("plugin has no parameters")
		}
		target := infos[0]
		before, ok := p.Get(target.ID)
		if !ok {
			return failf("param %d: get_value returned false", target.ID)
		}

		probe := target.Min
		if before == target.Min {
			probe = target.Max
		}
		if probe == before {
			return skipf("param %d: min and max coincide with current value, cannot probe", target.ID)
		}

		if err := sendForeignNamespaceParamValue(inst, target.ID, probe); err != nil {
			return failf("%v", err)
		}

		after, ok := p.Get(target.ID)
		if !ok {
			return failf("param %d: get_value returned false", target.ID)
		}
		if after != before {
			return failf("param %d: value changed from %v to %v after a param-value event on a non-core event space", target.ID, before, after)
		}
		return runner.Success, ""
	})
}

func sendForeignNamespaceParamValue(inst *pluginhost.Instance, id uint32, value float64) error {
	return pushForeignNamespaceEvent(inst, id, value)
}
