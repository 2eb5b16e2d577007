//go:build linux

package engine

import "golang.org/x/sys/unix"

// currentThreadID returns the kernel thread id of the calling OS thread.
// Go goroutines can migrate between OS threads between calls, so this is
// only meaningful for code that has pinned itself with runtime.LockOSThread
// (the cgo interposition shim always calls in from a fixed host thread) or
// that is a single synchronous call, as the hook entry/exit pair is.
func currentThreadID() int32 {
	return int32(unix.Gettid())
}
