package testcases

import (
	"fmt"

	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/process"
	"github.com/clapcheck/clapcheck/internal/runner"
)

func init() {
	runner.Register(runner.TestCase{
		Name:        "plugin-can-do-basic-audio-processing",
		Description: "plugin processes a handful of blocks without erroring or producing non-finite samples",
		Plugin:      pluginCanDoBasicAudioProcessing,
	})
}

// stereoInOut builds the audio-ports layout this harness drives a
// generic plugin with when it doesn't need to match the plugin's own
// declared configuration exactly: two channels in, two out.
func stereoInOut() (process.PortLayout, process.PortLayout) {
	return process.PortLayout{ChannelCounts: []uint32{2}}, process.PortLayout{ChannelCounts: []uint32{2}}
}

func pluginCanDoBasicAudioProcessing(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withActivatedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		in, out := stereoInOut()
		cfg := process.Config{
			SampleRate:   defaultSampleRate,
			Tempo:        120,
			FramesCount:  defaultFramesCount,
			Iterations:   4,
			InputLayout:  in,
			OutputLayout: out,
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

			seedInput(driver)

			runErr = process.Run(driver, at.Process, nil, func(it *process.Iteration) error {
				if it.Status == 0 {
					return fmt.Errorf("process() returned CLAP_PROCESS_ERROR on iteration %d", it.Index)
				}
				if p, c, f, ok := it.Buffers.InputsUnchangedSince(it.InputsBefore); !ok {
					return fmt.Errorf("the plugin overwrote its input buffers during out-of-place processing at port %d, channel %d, sample %d", p, c, f)
				}
				if idx, lastTime, eventTime, ok := outputEventsAreMonotonic(it.Events); !ok {
					return fmt.Errorf("the plugin output an event for sample %d (event %d) after it had previously output an event for sample %d", eventTime, idx, lastTime)
				}
				return nil
			})
		})
		if runErr != nil {
			return failf("%v", runErr)
		}
		return runner.Success, ""
	})
}

// outputEventsAreMonotonic reports whether every output event's sample
// time is non-decreasing relative to the one before it.
func outputEventsAreMonotonic(events []process.Event) (idx int, lastTime, eventTime uint32, ok bool) {
	var last uint32
	for i, e := range events {
		if i > 0 && e.Time < last {
			return i, last, e.Time, false
		}
		last = e.Time
	}
	return 0, 0, 0, true
}

// seedInput fills the input buffers with a low-amplitude ramp so a
// plugin that passes audio through produces something other than
// silence, without risking clipping on plugins with gain stages.
func seedInput(d *process.Driver) {
	buf := d.Buffers()
	for ch := 0; ch < 2; ch++ {
		samples := buf.InputChannel(0, ch)
		for i := range samples {
			samples[i] = float32(i%100) / 1000.0
		}
	}
}

// pushForeignNamespaceEvent runs a minimal one-iteration process cycle
// with no audio ports, just to deliver a single param-value event tagged
// with a non-core event space and observe whether the plugin reacted.
func pushForeignNamespaceEvent(inst *pluginhost.Instance, paramID uint32, value float64) error {
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
			return []process.Event{process.NewForeignNamespaceParamValueEvent(paramID, value, 0)}
		}, nil)
	})
	return runErr
}
