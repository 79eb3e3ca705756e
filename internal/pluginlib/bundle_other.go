//go:build !darwin

package pluginlib

import "fmt"

// resolveBundleExecutable is only meaningful on Apple platforms; other
// platforms load the shared object directly (§4.3 step 2).
func resolveBundleExecutable(bundlePath string) (string, error) {
	return "", fmt.Errorf("pluginlib: bundle resolution requested on non-darwin platform for %s", bundlePath)
}
