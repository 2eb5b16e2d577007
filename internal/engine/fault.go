package engine

import (
	"context"
	"unsafe"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

// faultHandler services access faults against not-resident pages of
// managed regions (spec §4.4). Its algorithm is deliberately separable from
// how the faulting address was obtained: a cgo SIGSEGV/SIGBUS trampoline
// calls HandleFault with the address from siginfo_t.si_addr, and this
// package's own tests call it directly, simulating a fault without ever
// raising a real signal (SPEC_FULL.md §4.7a).
type faultHandler struct {
	table  *table
	mapper rawMapper
	remote remotestore.Client
	ctx    context.Context
}

func newFaultHandler(t *table, mapper rawMapper, remote remotestore.Client) *faultHandler {
	return &faultHandler{table: t, mapper: mapper, remote: remote, ctx: context.Background()}
}

// faultOutcome reports what HandleFault did, mainly so tests and the
// non-cgo embedded strategy can distinguish "materialised a page" from
// "not our address, re-raise with default disposition" (spec §4.4 step 3,
// §7 Kind 7).
type faultOutcome int

const (
	faultUnrelated faultOutcome = iota
	faultServiced
	faultFatal
)

// HandleFault runs spec §4.4's algorithm for a fault at address addr.
//
// Step ordering matters: the table mutex is held only for the brief lookup
// (step 2) and the post-fetch residency update (step 7), never across the
// remote fetch itself, so that paging never serialises behind a slow
// remote call nor risks deadlocking against the allocator surface (spec
// §4.4 "Why stage through a stack buffer").
func (fh *faultHandler) HandleFault(addr uintptr) faultOutcome {
	page := addr &^ (PageSize - 1)

	var (
		region      *Region
		remoteID    RegionID
		pageBufIdx  int
		wasResident bool
	)

	fh.table.withLock(func() {
		region = fh.table.lookupContainingLocked(addr)
		if region != nil {
			pageBufIdx = region.pageIndex(page)
			wasResident = region.pageState[pageBufIdx].resident()
		}
	})

	if region == nil {
		return faultUnrelated
	}

	// A write landing on an already-resident, write-protected page is the
	// Writeback Worker's dirty-detection cycle catching up (spec §4.4, §9):
	// the page's contents are already correct, so just restore read/write
	// access and mark it dirty again, skipping the remote fetch entirely.
	if wasResident {
		if err := fh.mapper.protectReadWrite(page); err != nil {
			fatal("unprotect resident page %#x: %v", page, err)
			return faultFatal
		}

		fh.table.withLock(func() {
			still := fh.table.lookupExactLocked(region.base)
			if still == nil || still != region {
				return
			}

			region.pageState[pageBufIdx] |= pageDirty
		})

		return faultServiced
	}

	remoteID = region.remoteID
	pageIndex := pageBufIdx

	// A fixed-size page buffer declared locally, so staging the fetch never
	// goes through the hooked allocator surface. It is handed to the remote
	// client through an interface call, so escape analysis places it on the
	// Go heap rather than the stack.
	var buf [PageSize]byte

	n, err := fh.remote.VMFetch(fh.ctx, remotestore.RegionID(remoteID), uint64(pageIndex), buf[:])
	if err != nil {
		// spec §7 Kind 5 treats a short read as zero-fill; a hard
		// transport error is handled the same way, since a fault
		// handler has no way to retry safely from signal context and
		// zero-filling is always a safe, if sometimes stale, answer.
		n = 0
	}

	for i := n; i < PageSize; i++ {
		buf[i] = 0
	}

	if err := fh.mapper.mapFixedReadWrite(page); err != nil {
		// spec §7 Kind 6: leaving a protected hole would poison every
		// future fault in this range, so this is fatal.
		fatal("remap page %#x read/write: %v", page, err)
		return faultFatal
	}

	copy(unsafe.Slice((*byte)(unsafe.Pointer(page)), PageSize), buf[:])

	fh.table.withLock(func() {
		// Re-check the region is still alive: destroy() may have run
		// between the unlocked fetch above and here (spec §5
		// "Ordering").
		still := fh.table.lookupExactLocked(region.base)
		if still == nil || still != region {
			return
		}

		region.pageState[pageBufIdx] = pageResident // clean: matches remote (spec §9 Open Questions)
	})

	return faultServiced
}

// touchRange forces every not-resident page in [base, base+size) to fault
// in, by reading one byte from it. realloc uses this before copying a
// region's contents (spec §4.3), since the copy itself would otherwise be
// the first touch and a real SIGSEGV mid-memmove cannot be served from
// inside this process without reentering the kernel the same way a real
// fault would.
func (fh *faultHandler) touchRange(base, size uintptr) {
	for off := uintptr(0); off < size; off += PageSize {
		addr := base + off

		var region *Region

		fh.table.withLock(func() {
			region = fh.table.lookupContainingLocked(addr)
		})

		if region == nil {
			continue
		}

		page := addr &^ (PageSize - 1)
		pageIdx := region.pageIndex(page)

		var resident bool

		fh.table.withLock(func() {
			resident = region.pageState[pageIdx].resident()
		})

		if !resident {
			fh.HandleFault(addr)
		}
	}
}

// copyMemory copies size bytes from src to dst through unsafe.Slice views of
// both ranges, used once both ranges are guaranteed resident.
func copyMemory(dst, src uintptr, size uintptr) {
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	copy(dstSlice, srcSlice)
}
