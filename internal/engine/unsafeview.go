package engine

import "unsafe"

// unsafeByteView builds a []byte view over raw-mapped memory at addr. The
// memory is owned by the kernel mapping (obtained via the raw mapper, never
// via make()), so this is the one place region bookkeeping is allowed to
// treat an address as a slice header.
func unsafeByteView(addr uintptr, length int) []byte {
	if length == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}

// bytesAsPageStates reinterprets a raw-mapped byte buffer as the table's
// pageState pool. pageState is a single byte, so this is a straight
// reinterpret with no alignment concerns.
func bytesAsPageStates(b []byte) []pageState {
	if len(b) == 0 {
		return nil
	}

	return unsafe.Slice((*pageState)(unsafe.Pointer(&b[0])), len(b))
}
