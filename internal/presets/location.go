// Package presets implements the preset-discovery harness (§4.7): an
// indexer that collects a provider's declarations during init(), and a
// metadata-receiver state machine driven once per preset file.
package presets

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// Location is the tagged URI variant from §3: either a file path or the
// literal "plugin://" location.
type Location struct {
	IsPlugin bool
	Path     string // absolute path, valid only when !IsPlugin
}

// PluginLocationURI is the canonical plugin:// location value.
const PluginLocationURI = "plugin://"

// ParseLocation parses a location URI per §3: a file:// URI with a
// required leading slash (forward-slash-only on Windows), or the literal
// "plugin://" with no trailing path.
//
// This corrects the one known typo in the original implementation
// (reconstructing "fille://" instead of "file://", §9) — clapcheck never
// produces or accepts that misspelling.
func ParseLocation(raw string) (Location, error) {
	if raw == PluginLocationURI {
		return Location{IsPlugin: true}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("presets: invalid location URI %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return Location{}, fmt.Errorf("presets: unsupported location scheme %q (want file:// or %q)", u.Scheme, PluginLocationURI)
	}
	if !strings.HasPrefix(u.Path, "/") {
		return Location{}, fmt.Errorf("presets: file:// location %q must have a leading slash", raw)
	}
	if runtime.GOOS == "windows" && strings.Contains(u.Path, "\\") {
		return Location{}, fmt.Errorf("presets: file:// location %q must use forward slashes on Windows", raw)
	}

	path := u.Path
	if runtime.GOOS == "windows" {
		path = strings.TrimPrefix(path, "/")
		path = filepath.FromSlash(path)
	}

	return Location{Path: path}, nil
}

// String reconstructs the location URI, using the corrected "file://"
// scheme.
func (l Location) String() string {
	if l.IsPlugin {
		return PluginLocationURI
	}
	p := l.Path
	if runtime.GOOS == "windows" {
		p = "/" + filepath.ToSlash(p)
	}
	return "file://" + p
}
