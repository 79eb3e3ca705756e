//go:build windows

package osthread

import "golang.org/x/sys/windows"

// Current returns the OS thread ID of the calling goroutine's current
// OS thread.
func Current() int64 {
	return int64(windows.GetCurrentThreadId())
}
