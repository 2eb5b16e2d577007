//go:build linux || darwin

package engine

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixMapper implements rawMapper with the genuine mmap(2)/mprotect(2)/
// munmap(2) syscalls, grounded on the same unix.* call style the teacher's
// internal/runtime/asyncio zero-copy files use for splice(2) and pipe(2).
type unixMapper struct{}

func newUnixMapper() rawMapper { return unixMapper{} }

func alignUpPage(n uintptr) uintptr {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// sliceAddr returns the address of a mmap-returned byte slice's backing
// store. The slice itself is intentionally leaked: its memory is owned by
// the kernel mapping, not by the Go runtime, and must outlive any GC that
// doesn't know about it.
func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// pageSlice builds a PageSize-length slice view over already-mapped memory
// at addr, for passing to unix.Mprotect which operates on []byte.
func pageSlice(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), PageSize)
}

func pageRangeSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(alignUpPage(size)))
}

func (unixMapper) reserve(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(alignUpPage(size)), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("mmap reserve %d bytes: %w", size, err)
	}

	return sliceAddr(b), nil
}

func (unixMapper) reserveReadWrite(size uintptr) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, int(alignUpPage(size)), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("mmap reserve rw %d bytes: %w", size, err)
	}

	return sliceAddr(b), nil
}

func (unixMapper) protectNone(addr uintptr) error {
	return unix.Mprotect(pageSlice(addr), unix.PROT_NONE)
}

func (unixMapper) protectReadOnly(addr uintptr) error {
	return unix.Mprotect(pageSlice(addr), unix.PROT_READ)
}

func (unixMapper) protectReadWrite(addr uintptr) error {
	return unix.Mprotect(pageSlice(addr), unix.PROT_READ|unix.PROT_WRITE)
}

// mapFixedReadWrite remaps a single page at a fixed address as read/write,
// demanding placement exactly there (spec §4.4 step 5). golang.org/x/sys/unix's
// Mmap helper always requests addr=0, so a true MAP_FIXED remap goes through
// the raw syscall directly; this is also what keeps this call
// async-signal-safe, since it never touches a Go slice header.
func (unixMapper) mapFixedReadWrite(addr uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, PageSize,
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_FIXED),
		^uintptr(0), 0)
	if errno != 0 {
		return fmt.Errorf("mmap MAP_FIXED at %#x: %w", addr, errno)
	}

	return nil
}

func (unixMapper) unreserve(addr uintptr, size uintptr) error {
	return unix.Munmap(pageRangeSlice(addr, size))
}
