//go:build darwin

package osthread

/*
#include <pthread.h>
static unsigned long long clapcheck_thread_id(void) {
	unsigned long long tid = 0;
	pthread_threadid_np(NULL, &tid);
	return tid;
}
*/
import "C"

// Current returns the OS thread ID of the calling goroutine's current
// OS thread.
func Current() int64 {
	return int64(C.clapcheck_thread_id())
}
