//go:build linux

// Package osthread exposes the calling goroutine's current OS thread
// identity. CLAP's thread-check contract is specified against OS
// threads, not goroutines, so every call site that cares about
// main-thread/audio-thread identity pins itself with
// runtime.LockOSThread and reads this ID once.
package osthread

import "golang.org/x/sys/unix"

// Current returns the OS thread ID of the calling goroutine's current
// OS thread.
func Current() int64 {
	return int64(unix.Gettid())
}
