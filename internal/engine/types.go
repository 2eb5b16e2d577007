// Package engine implements the remote-memory paging engine: the region
// table, region manager, fault handler and writeback worker that back large
// allocations with pages fetched lazily from a remote store.
package engine

import (
	"errors"
	"fmt"
	"sync"
)

// PageSize is the granularity at which regions are faulted in and written
// back. It matches the host's native page size on every platform this engine
// targets.
const PageSize = 4096

// MaxRegions bounds the Region Table so that its backing storage can be
// acquired once, in one burst, from the raw mapping primitive at bootstrap
// and never grow on a paging-critical path.
const MaxRegions = 1024

// pageState is one byte per page, carrying the resident and dirty flags
// described in spec §3. It is intentionally a plain byte (not a struct) so
// that a region's whole page-state buffer is a flat slice obtained from the
// raw mapping primitive.
type pageState uint8

const (
	pageResident pageState = 1 << 0
	pageDirty    pageState = 1 << 1
)

func (p pageState) resident() bool { return p&pageResident != 0 }
func (p pageState) dirty() bool    { return p&pageDirty != 0 }

// RegionID identifies a region slot's backing remote allocation. It is
// assigned by the Remote Store Client, not by this engine.
type RegionID uint64

// Region is one contiguous virtual-address range backing a single large
// allocation, per spec §3.
type Region struct {
	base      uintptr
	size      uintptr
	remoteID  RegionID
	pageState []pageState
	active    bool
}

// Base returns the region's starting virtual address.
func (r *Region) Base() uintptr { return r.base }

// Size returns the region's total byte size.
func (r *Region) Size() uintptr { return r.size }

// RemoteID returns the opaque remote-store identifier for this region.
func (r *Region) RemoteID() RegionID { return r.remoteID }

// PageCount returns the number of pages spanned by the region, including a
// final partial page.
func (r *Region) PageCount() int {
	return int((r.size + PageSize - 1) / PageSize)
}

// containsAddr reports whether addr falls inside [base, base+size).
func (r *Region) containsAddr(addr uintptr) bool {
	return addr >= r.base && addr < r.base+r.size
}

// pageIndex returns the page index of addr within the region. The caller
// must have already established that the region contains addr.
func (r *Region) pageIndex(addr uintptr) int {
	return int((addr - r.base) / PageSize)
}

// pageAddr returns the page-aligned address of page i within the region.
func (r *Region) pageAddr(i int) uintptr {
	return r.base + uintptr(i)*PageSize
}

// Errors returned across the engine. These are kinds, not a taxonomy of
// distinct types, per spec §7 — call sites that need to distinguish
// behavior use errors.Is against these sentinels.
var (
	ErrOutOfSlots       = errors.New("engine: region table exhausted")
	ErrNotFound         = errors.New("engine: no region at address")
	ErrAddressExhausted = errors.New("engine: address space reservation failed")
	ErrRemoteAdmit      = errors.New("engine: remote store refused allocation")
	ErrNotReady         = errors.New("engine: remote client not ready")
)

// fatal reports an unrecoverable condition per spec §7 Kinds 1 and 6: the
// process cannot continue safely and must abort rather than return a
// plausible-looking but broken result. It is a package variable so tests can
// substitute a panic (or a recording stub) instead of terminating the test
// binary.
var fatal = func(format string, args ...interface{}) {
	panic(fmt.Sprintf("memcloud-vm: fatal: "+format, args...))
}

var fatalMu sync.Mutex

// withFatalHook temporarily replaces the fatal hook, for use by tests that
// need to observe an abort path without killing the test process.
func withFatalHook(hook func(string, ...interface{}), fn func()) {
	fatalMu.Lock()
	prev := fatal
	fatal = hook
	fatalMu.Unlock()

	defer func() {
		fatalMu.Lock()
		fatal = prev
		fatalMu.Unlock()
	}()

	fn()
}
