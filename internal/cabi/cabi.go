// Package cabi provides the cgo boundary shared by every other internal
// package: the vendored CLAP header, null-pointer guards, C-string
// conversions and the harness-bug error type used across the validator.
//
// The loader (internal/pluginlib) and the preset-discovery harness
// (internal/presets) pass the pointers a plugin hands back through
// RequireNonNil, so a null factory, descriptor, plugin or provider is
// caught at the boundary instead of segfaulting the process. Calls
// through an instance's own plugin and extension vtables are made
// directly, without these checks.
package cabi

/*
#cgo LDFLAGS: -ldl
#include "clap.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/rs/zerolog/log"
)

// HarnessBugError marks a violation of the validator's own invariants —
// never a plugin failure. The CLI recovers these at the top level and
// exits without producing a test result.
type HarnessBugError struct {
	Site string
	Msg  string
}

func (e *HarnessBugError) Error() string {
	return fmt.Sprintf("harness bug at %s: %s", e.Site, e.Msg)
}

// Bug panics with a HarnessBugError. Call this for lifecycle violations
// and other conditions that must never be reached if the harness itself
// is correct.
func Bug(site, format string, args ...interface{}) {
	panic(&HarnessBugError{Site: site, Msg: fmt.Sprintf(format, args...)})
}

// GoString converts a possibly-null terminated C string into an owned Go
// string. A null pointer yields ("", false); present-but-empty strings
// yield ("", true).
func GoString(p *C.char) (string, bool) {
	if p == nil {
		return "", false
	}
	return C.GoString(p), true
}

// GoStringOrEmpty normalizes a possibly-null C string to "" rather than
// signalling absence, used for fields spec.md treats as "empty maps to
// absent" at a higher layer.
func GoStringOrEmpty(p *C.char) string {
	s, _ := GoString(p)
	return s
}

// GoStringArray converts a null-terminated array of C strings into a Go
// slice. A nil array pointer yields an empty, non-nil slice.
func GoStringArray(arr **C.char) []string {
	if arr == nil {
		return []string{}
	}
	out := []string{}
	stride := unsafe.Sizeof(*arr)
	// The array is NULL-terminated; there is no length to trust from the ABI.
	for i := uintptr(0); ; i++ {
		ptr := *(**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(arr)) + i*stride))
		if ptr == nil {
			break
		}
		out = append(out, C.GoString(ptr))
	}
	return out
}

// CString allocates a C string the caller must free with C.free.
func CString(s string) *C.char {
	return C.CString(s)
}

// Free releases a pointer allocated by CString or C.calloc.
func Free(p unsafe.Pointer) {
	C.free(p)
}

// TimestampFromUnix converts a CLAP preset-discovery timestamp (seconds
// since epoch, 0 meaning "unknown") into an optional wall-clock value.
func TimestampFromUnix(sec uint64) (time.Time, bool) {
	if sec == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(sec), 0).UTC(), true
}

// RequireNonNil checks that every named pointer in ptrs is non-null. On
// the first violation it logs the call site and returns false; callers
// should return a caller-supplied default (never a panic — a plugin that
// passes a null pointer it shouldn't have is a plugin failure candidate,
// not a harness bug, unless the site is host-internal).
func RequireNonNil(site string, ptrs map[string]unsafe.Pointer) bool {
	for name, p := range ptrs {
		if p == nil {
			log.Warn().Str("site", site).Str("pointer", name).Msg("unexpected null pointer at ABI boundary")
			return false
		}
	}
	return true
}

// Invoke wraps a foreign call so that a panic inside the plugin-callback
// path (e.g. a decoding bug in our own Go callback) is recovered rather
// than unwinding across the cgo boundary, which is undefined behavior.
// A recovered HarnessBugError is returned as itself; any other panic
// value is returned as a plain error. Invoke does not log; its callers
// log the returned error.
func Invoke(site string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if hb, ok := r.(*HarnessBugError); ok {
				err = hb
				return
			}
			err = fmt.Errorf("panic in %s: %v", site, r)
		}
	}()
	fn()
	return nil
}
