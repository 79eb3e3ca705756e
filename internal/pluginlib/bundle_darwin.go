//go:build darwin

package pluginlib

/*
#cgo LDFLAGS: -framework CoreFoundation
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>

static char *clapcheck_bundle_executable(const char *bundlePath) {
	CFStringRef pathStr = CFStringCreateWithCString(NULL, bundlePath, kCFStringEncodingUTF8);
	CFURLRef bundleURL = CFURLCreateWithFileSystemPath(NULL, pathStr, kCFURLPOSIXPathStyle, true);
	CFBundleRef bundle = CFBundleCreate(NULL, bundleURL);
	CFRelease(pathStr);
	CFRelease(bundleURL);
	if (!bundle) {
		return NULL;
	}
	CFURLRef execURL = CFBundleCopyExecutableURL(bundle);
	CFRelease(bundle);
	if (!execURL) {
		return NULL;
	}
	char buf[4096];
	if (!CFURLGetFileSystemRepresentation(execURL, true, (UInt8*)buf, sizeof(buf))) {
		CFRelease(execURL);
		return NULL;
	}
	CFRelease(execURL);
	return strdup(buf);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// resolveBundleExecutable resolves a .clap bundle directory to its
// Contents/MacOS executable path via CoreFoundation, the way the
// original clap-validator does on Apple platforms (§4.3 step 2).
func resolveBundleExecutable(bundlePath string) (string, error) {
	cPath := C.CString(bundlePath)
	defer C.free(unsafe.Pointer(cPath))

	exec := C.clapcheck_bundle_executable(cPath)
	if exec == nil {
		return "", fmt.Errorf("pluginlib: failed to resolve bundle executable for %s", bundlePath)
	}
	defer C.free(unsafe.Pointer(exec))
	return C.GoString(exec), nil
}
