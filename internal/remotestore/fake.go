package remotestore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// FakeClient is an in-process Client implementation, grounded on the
// teacher's InMemoryTransport pattern for actor transport in
// internal/runtime/remote/inmemory.go: no sockets, no daemon process, just a
// map guarded by a mutex. It backs every engine-level test (SPEC_FULL.md
// §8) so the region table, fault handler and writeback worker can be driven
// without a real paging daemon.
type FakeClient struct {
	mu      sync.Mutex
	regions map[RegionID]map[uint64][]byte // regionID -> pageIndex -> page bytes
	nextID  uint64

	ready atomic.Bool

	// StoreFailures, if positive, makes the next N VMStore calls fail
	// (spec §7 Kind 8: writeback failure leaves the dirty bit set and
	// retries next tick).
	StoreFailures int

	// AllocFailures, if positive, makes the next N VMAlloc calls fail
	// (spec §7 Kind 2: remote admit failure).
	AllocFailures int
}

// NewFakeClient returns a client that is immediately Ready without needing
// InitWithPath, matching tests that want to exercise the engine without the
// handshake machinery.
func NewFakeClient() *FakeClient {
	f := &FakeClient{regions: make(map[RegionID]map[uint64][]byte)}
	f.ready.Store(true)

	return f
}

func (f *FakeClient) InitWithPath(_ context.Context, _ string) error {
	f.ready.Store(true)
	return nil
}

func (f *FakeClient) Ready() bool { return f.ready.Load() }

func (f *FakeClient) VMAlloc(_ context.Context, _ uint64) (RegionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AllocFailures > 0 {
		f.AllocFailures--
		return 0, fmt.Errorf("fake remote store: admit refused")
	}

	f.nextID++
	id := RegionID(f.nextID)
	f.regions[id] = make(map[uint64][]byte)

	return id, nil
}

func (f *FakeClient) VMFree(_ context.Context, id RegionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.regions, id)

	return nil
}

func (f *FakeClient) VMFetch(_ context.Context, id RegionID, pageIndex uint64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pages, ok := f.regions[id]
	if !ok {
		return 0, fmt.Errorf("fake remote store: unknown region %d", id)
	}

	page, ok := pages[pageIndex]
	if !ok {
		// Never-written page: a genuine short read of zero bytes, per
		// spec §4.4 step 4 ("new pages are conceptually zero").
		return 0, nil
	}

	return copy(buf, page), nil
}

func (f *FakeClient) VMStore(_ context.Context, id RegionID, pageIndex uint64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StoreFailures > 0 {
		f.StoreFailures--
		return fmt.Errorf("fake remote store: transient writeback failure")
	}

	pages, ok := f.regions[id]
	if !ok {
		return fmt.Errorf("fake remote store: unknown region %d", id)
	}

	stored := make([]byte, len(buf))
	copy(stored, buf)
	pages[pageIndex] = stored

	return nil
}

func (f *FakeClient) Close() error { return nil }

// PageAt returns a copy of what the fake store holds for (id, pageIndex),
// for test assertions. Returns nil, false if nothing has been stored there.
func (f *FakeClient) PageAt(id RegionID, pageIndex uint64) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pages, ok := f.regions[id]
	if !ok {
		return nil, false
	}

	p, ok := pages[pageIndex]
	if !ok {
		return nil, false
	}

	out := make([]byte, len(p))
	copy(out, p)

	return out, true
}
