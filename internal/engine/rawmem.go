package engine

// rawMapper is the raw memory-mapping primitive the Region Table, Region
// Manager and Fault Handler use directly, bypassing the allocator hooks so
// that paging machinery never reenters itself (spec §4.1, §4.2 policy).
//
// A platform implements this once (see rawmem_unix.go) using the genuine
// mmap/mprotect/munmap syscalls, not anything routed through the hooked
// allocator surface.
type rawMapper interface {
	// reserve maps size bytes of fresh address space with no access
	// permissions at all (spec §4.3 create step 2).
	reserve(size uintptr) (uintptr, error)

	// reserveReadWrite maps size bytes of fresh, zeroed, read/write address
	// space. Used for the table's own bootstrap allocation (spec §4.2
	// policy) and by tests.
	reserveReadWrite(size uintptr) (uintptr, error)

	// protectNone removes all access to the page-aligned range
	// [addr, addr+PageSize).
	protectNone(addr uintptr) error

	// protectReadOnly marks the page-aligned range [addr, addr+PageSize) as
	// read-only, used by the Writeback Worker's write-protect dirty
	// detection cycle (spec §4.4, §9).
	protectReadOnly(addr uintptr) error

	// protectReadWrite upgrades the page-aligned range [addr, addr+PageSize)
	// back to read/write in place, preserving its contents. Used when a
	// write-protect fault lands on an already-resident page: unlike
	// mapFixedReadWrite, this never discards the page's data.
	protectReadWrite(addr uintptr) error

	// mapFixedReadWrite remaps a single page at a fixed address as
	// read/write, demanding the kernel place it exactly there (spec §4.4
	// step 5). Any failure here is fatal per spec §7 Kind 6.
	mapFixedReadWrite(addr uintptr) error

	// unreserve releases size bytes starting at addr back to the OS.
	unreserve(addr uintptr, size uintptr) error
}

// defaultMapper is the raw mapper used outside of tests. Platform build
// files provide its concrete value.
var defaultMapper rawMapper = newUnixMapper()
