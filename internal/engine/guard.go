package engine

import "sync"

// guard is the recursion guard described in spec §4.6 and §9: a flag that
// inhibits an allocator hook from reentering itself when code invoked by the
// hook (symbol resolution, mutex acquisition, the remote client) makes an
// inner allocation of its own.
//
// The hooks are entered from arbitrary host OS threads (via the cgo
// interposition shim), not goroutines, so the guard is keyed by OS thread
// id rather than by goroutine — the same semantics as the original C
// draft's "__thread int in_hook", expressed without cgo so the embedded
// pure-Go engine strategy (spec §4.7a) can unit-test it directly.
type guard struct {
	mu  sync.Mutex
	set map[int32]bool
}

func newGuard() *guard {
	return &guard{set: make(map[int32]bool)}
}

// enter reports whether the guard was already set for the calling thread
// and, if not, sets it. Callers use this exactly once at hook entry:
//
//	if g.enter(tid) { return internalAlloc(...) }
//	defer g.exit(tid)
func (g *guard) enter(tid int32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.set[tid] {
		return true
	}

	g.set[tid] = true

	return false
}

// exit clears the guard for the calling thread.
func (g *guard) exit(tid int32) {
	g.mu.Lock()
	delete(g.set, tid)
	g.mu.Unlock()
}
