package engine

import (
	"context"
	"errors"
	"fmt"
)

// Alloc, ZeroAlloc, Realloc and Free are the embedded-engine strategy's
// public surface (spec §4.7a): ordinary Go entry points a host program, the
// cgo shim, or a test can call directly, each running an
// ensure-bootstrapped → guard → route prologue. Bootstrap runs before the
// recursion guard is consulted, since the guard is a field of the Engine
// that Bootstrap builds.
func Alloc(size uintptr) (uintptr, error) {
	e, err := Bootstrap()
	if err != nil {
		return 0, err
	}

	return e.alloc(size)
}

// ZeroAlloc implements calloc(m, n): spec §4.6 treats it as alloc(m*n) with
// no explicit zeroing step, since a never-written remote page already reads
// as zero (the remote store itself, or the Fault Handler's short-read
// zero-fill, supplies that).
func ZeroAlloc(count, size uintptr) (uintptr, error) {
	e, err := Bootstrap()
	if err != nil {
		return 0, err
	}

	return e.alloc(count * size)
}

func Realloc(oldAddr uintptr, newSize uintptr) (uintptr, error) {
	e, err := Bootstrap()
	if err != nil {
		return 0, err
	}

	return e.realloc(oldAddr, newSize)
}

func Free(addr uintptr) error {
	e, err := Bootstrap()
	if err != nil {
		return err
	}

	return e.free(addr)
}

func (e *Engine) alloc(size uintptr) (uintptr, error) {
	tid := currentThreadID()
	if e.guard.enter(tid) {
		// Reentered from inside our own machinery (e.g. a mutex's internal
		// bookkeeping): serve it from the internal allocator, never the
		// routed path, so the hook never calls back into itself.
		return e.local.alloc(size)
	}
	defer e.guard.exit(tid)

	ctx := context.Background()

	if e.routesRemote(ctx, size) {
		r, cerr := newManager(e.table, e.mapper, e.remote).create(ctx, size)
		if cerr != nil {
			return 0, e.createFailure(cerr, "allocation", size)
		}

		return r.Base(), nil
	}

	return e.local.alloc(size)
}

// createFailure implements spec §7's split between Kind 2 (remote admit
// refusal) and Kinds 3/4 (address space or table exhaustion): only a remote
// admit failure aborts the process, because the caller was told nothing yet
// and may be relying on a previously-admitted address remaining valid.
// Address-space or table exhaustion is an ordinary allocation failure —
// create() has already unwound whatever it reserved — so it surfaces as a
// null return, the same as a host's own malloc running out of room.
func (e *Engine) createFailure(cerr error, what string, size uintptr) error {
	if errors.Is(cerr, ErrRemoteAdmit) {
		logf("remote admit refused for %s (%d bytes): %v — aborting", what, size, cerr)
		fatal("remote admit failed for %s: %v", what, cerr)

		return cerr
	}

	logf("%s (%d bytes) failed: %v", what, size, cerr)

	return cerr
}

// routesRemote implements spec §4.6's routing guard: n ≥ threshold and the
// remote client is ready. A not-yet-connected (or never reachable) client
// simply never routes remote — this is "not ready," not a failure (spec §3,
// §7 Kind 2's refinement).
func (e *Engine) routesRemote(ctx context.Context, size uintptr) bool {
	if uint64(size) < e.cfg.Threshold() {
		return false
	}

	e.ensureRemote(ctx)

	return e.remote.Ready()
}

func (e *Engine) realloc(oldAddr uintptr, newSize uintptr) (uintptr, error) {
	tid := currentThreadID()
	if e.guard.enter(tid) {
		return e.localRealloc(oldAddr, newSize)
	}
	defer e.guard.exit(tid)

	ctx := context.Background()

	if region := e.table.lookupExact(oldAddr); region != nil {
		newRegion, err := newManager(e.table, e.mapper, e.remote).realloc(ctx, oldAddr, newSize, e.fault)
		if err != nil {
			return 0, e.createFailure(err, "realloc", newSize)
		}

		return newRegion.Base(), nil
	}

	oldSize, isLocal := e.local.usableSize(oldAddr)
	if !isLocal {
		// Unknown pointer: not one of ours at all. The embedded strategy
		// has no underlying allocator to defer to, so this is the caller
		// passing an address this engine never produced.
		return 0, fmt.Errorf("engine: realloc of unmanaged address %#x", oldAddr)
	}

	if e.routesRemote(ctx, newSize) {
		// Crossing the threshold upward: create remote, copy, free local
		// (spec §4.3's small-to-remote crossover case).
		r, cerr := newManager(e.table, e.mapper, e.remote).create(ctx, newSize)
		if cerr != nil {
			return 0, e.createFailure(cerr, "realloc promotion", newSize)
		}

		copySize := oldSize
		if newSize < copySize {
			copySize = newSize
		}

		if copySize > 0 {
			e.fault.touchRange(r.Base(), copySize)
			copyMemory(r.Base(), oldAddr, copySize)
		}

		e.local.free(oldAddr)

		return r.Base(), nil
	}

	return e.localRealloc(oldAddr, newSize)
}

// localRealloc handles the all-local case: both old and new sizes stay
// below threshold (or this call came from inside the recursion guard, which
// never routes remote regardless of size).
func (e *Engine) localRealloc(oldAddr uintptr, newSize uintptr) (uintptr, error) {
	oldSize, isLocal := e.local.usableSize(oldAddr)

	newAddr, err := e.local.alloc(newSize)
	if err != nil {
		return 0, err
	}

	if isLocal {
		copySize := oldSize
		if newSize < copySize {
			copySize = newSize
		}

		if copySize > 0 {
			copyMemory(newAddr, oldAddr, copySize)
		}

		e.local.free(oldAddr)
	}

	return newAddr, nil
}

// free reports ErrNotFound when addr names neither a remote region nor a
// live local allocation, so a caller like the cgo interposition shim can
// tell "freed" apart from "not ours" and fall back to the host's real free
// for a pointer this engine never produced.
func (e *Engine) free(addr uintptr) error {
	tid := currentThreadID()
	if e.guard.enter(tid) {
		if !e.local.free(addr) {
			return ErrNotFound
		}
		return nil
	}
	defer e.guard.exit(tid)

	if err := newManager(e.table, e.mapper, e.remote).destroy(context.Background(), addr); err == nil {
		return nil
	} else if err != ErrNotFound {
		return err
	}

	if !e.local.free(addr) {
		return ErrNotFound
	}

	return nil
}
