//go:build !linux

package engine

import "golang.org/x/sys/unix"

// currentThreadID falls back to the process id on platforms where this
// engine doesn't have a cheap per-thread id (Darwin's gettid is not
// universally available through golang.org/x/sys/unix). Recursion within a
// single process still trips the guard; cross-thread false sharing of the
// guard only matters for interposition builds, which are Linux-primary.
func currentThreadID() int32 {
	return int32(unix.Getpid())
}
