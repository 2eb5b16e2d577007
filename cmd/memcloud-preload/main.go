// Command memcloud-preload builds as a C shared library
// (-buildmode=c-shared) for loading via LD_PRELOAD (Linux) or
// DYLD_INSERT_LIBRARIES (Darwin). It exports goMalloc, goCalloc, goRealloc,
// goFree and goHandleFault and installs the SIGSEGV/SIGBUS handler; it does
// not define the C symbols malloc, calloc, realloc and free themselves, so
// loading it does not redirect the host's heap calls into these exports.
// Everything here is glue: symbol resolution, signal installation, and
// translating C calls into internal/engine calls. The paging engine itself lives entirely in
// internal/engine and knows nothing about cgo.
package main

/*
#cgo linux LDFLAGS: -ldl
#include <stddef.h>
#include <signal.h>
#include <stdint.h>

typedef void *(*malloc_fn)(size_t);
typedef void *(*calloc_fn)(size_t, size_t);
typedef void *(*realloc_fn)(void *, size_t);
typedef void (*free_fn)(void *);

void installSignalHandlers(void);
uintptr_t realMalloc(size_t size);
uintptr_t realCalloc(size_t count, size_t size);
uintptr_t realRealloc(uintptr_t ptr, size_t size);
void realFree(uintptr_t ptr);
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/vibhanshu2001/memcloud/internal/engine"
)

func main() {
	// Required by cgo's c-shared build mode; this process body never runs
	// when the library is loaded by LD_PRELOAD.
}

func init() {
	if _, err := engine.Bootstrap(); err != nil {
		// spec §7 Kind 1: bootstrap failure is fatal before any hook is
		// taken.
		os.Stderr.WriteString("memcloud-preload: bootstrap failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	C.installSignalHandlers()
}

//export goMalloc
func goMalloc(size C.size_t) unsafe.Pointer {
	addr, err := engine.Alloc(uintptr(size))
	if err != nil || addr == 0 {
		return unsafe.Pointer(uintptr(C.realMalloc(size)))
	}

	return unsafe.Pointer(addr)
}

//export goCalloc
func goCalloc(count, size C.size_t) unsafe.Pointer {
	addr, err := engine.ZeroAlloc(uintptr(count), uintptr(size))
	if err != nil || addr == 0 {
		return unsafe.Pointer(uintptr(C.realCalloc(count, size)))
	}

	return unsafe.Pointer(addr)
}

//export goRealloc
func goRealloc(ptr unsafe.Pointer, size C.size_t) unsafe.Pointer {
	addr, err := engine.Realloc(uintptr(ptr), uintptr(size))
	if err != nil || addr == 0 {
		return unsafe.Pointer(uintptr(C.realRealloc(C.uintptr_t(uintptr(ptr)), size)))
	}

	return unsafe.Pointer(addr)
}

//export goFree
func goFree(ptr unsafe.Pointer) {
	if err := engine.Free(uintptr(ptr)); err != nil {
		C.realFree(C.uintptr_t(uintptr(ptr)))
	}
}

//export goHandleFault
func goHandleFault(addr uintptr) C.int {
	switch engine.DefaultFaultOutcome(addr) {
	case engine.FaultServiced:
		return 1
	case engine.FaultFatal:
		return -1
	default:
		return 0
	}
}
