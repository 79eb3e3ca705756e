package testcases

import (
	"bytes"

	"github.com/clapcheck/clapcheck/internal/pluginhost"
	"github.com/clapcheck/clapcheck/internal/runner"
)

func init() {
	runner.Register(runner.TestCase{
		Name:        "invalid-state-load",
		Description: "plugin.state.load rejects an empty state instead of accepting it",
		Plugin:      invalidStateLoad,
	})
	runner.Register(runner.TestCase{
		Name:        "state-reproducibility",
		Description: "saving then loading state on a fresh instance reproduces the same saved bytes",
		Plugin:      stateReproducibility,
	})
	runner.Register(runner.TestCase{
		Name:        "buffered-state-reproducibility",
		Description: "state save/load survives being driven through short, multi-chunk reads and writes",
		Plugin:      bufferedStateReproducibility,
	})
}

// bufferedLoadChunkSize and bufferedSaveChunkSize are deliberately small,
// distinct, and not powers of two, to force every read and every write
// callback into a boundary the plugin's parser would not see with a
// single large buffer.
const (
	bufferedLoadChunkSize = 17
	bufferedSaveChunkSize = 23
)

func invalidStateLoad(ctx *runner.PluginContext) (runner.Verdict, string) {
	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		st := stateExt(inst)
		if st == nil {
			return skipf("plugin does not implement clap.state")
		}
		if err := st.Load([]byte{}); err == nil {
			return failf("state.load accepted an empty state")
		}
		return runner.Success, ""
	})
}

func stateReproducibility(ctx *runner.PluginContext) (runner.Verdict, string) {
	saved, verdict, reason := saveStateFromFreshInstance(ctx)
	if verdict != runner.Success {
		return verdict, reason
	}
	if saved == nil {
		return runner.Skipped, "plugin does not implement clap.state"
	}

	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		st := stateExt(inst)
		if err := st.Load(saved); err != nil {
			return failf("second instance rejected the first instance's saved state: %v", err)
		}
		replayed, err := st.Save()
		if err != nil {
			return failf("re-save after load failed: %v", err)
		}
		if !bytes.Equal(saved, replayed) {
			return failf("save -> load -> save produced %d bytes, expected the original %d bytes unchanged", len(replayed), len(saved))
		}
		return runner.Success, ""
	})
}

// bufferedStateReproducibility treats an unbuffered save from a fresh
// instance as ground truth, then checks that a second instance loading
// that state through short reads and re-saving it through short writes
// reproduces the same bytes.
func bufferedStateReproducibility(ctx *runner.PluginContext) (runner.Verdict, string) {
	saved, verdict, reason := saveStateFromFreshInstance(ctx)
	if verdict != runner.Success {
		return verdict, reason
	}
	if saved == nil {
		return runner.Skipped, "plugin does not implement clap.state"
	}

	return withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		st := stateExt(inst)
		if err := st.LoadBuffered(saved, bufferedLoadChunkSize); err != nil {
			return failf("buffered load (max %d bytes per read) failed: %v", bufferedLoadChunkSize, err)
		}
		replayed, err := st.SaveBuffered(bufferedSaveChunkSize)
		if err != nil {
			return failf("buffered re-save (max %d bytes per write) failed: %v", bufferedSaveChunkSize, err)
		}
		if !bytes.Equal(saved, replayed) {
			return failf("loading the state with reads capped at %d bytes and re-saving with writes capped at %d bytes produced %d bytes, expected the original %d bytes unchanged", bufferedLoadChunkSize, bufferedSaveChunkSize, len(replayed), len(saved))
		}
		return runner.Success, ""
	})
}

func saveStateFromFreshInstance(ctx *runner.PluginContext) ([]byte, runner.Verdict, string) {
	var saved []byte
	verdict, reason := withInitializedInstance(ctx, func(inst *pluginhost.Instance) (runner.Verdict, string) {
		st := stateExt(inst)
		if st == nil {
			return runner.Success, ""
		}
		data, err := st.Save()
		if err != nil {
			return failf("initial save failed: %v", err)
		}
		saved = data
		return runner.Success, ""
	})
	return saved, verdict, reason
}
