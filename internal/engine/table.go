package engine

import "sync"

// table is the Region Table: a fixed-capacity registry of live remote-backed
// regions (spec §3, §4.2). Every region's page-state buffer is carved out of
// one pool acquired in one burst from the raw mapping primitive at
// bootstrap; the slot array itself is allocated once from the Go heap at the
// same time, not from the raw mapping primitive. Neither grows afterwards, so
// lookup/insert/release never allocate on the paging-critical path — mirroring the teacher's internal/runtime/region_alloc.go pattern of
// a pre-sized table guarded by a single mutex.
type table struct {
	mu      sync.Mutex
	slots   []Region
	mapper  rawMapper
	pageBuf []pageState // one contiguous pool, sliced out per region
}

// maxRegionPages bounds how many pages a single region's page-state slice
// may carve out of the bootstrap pool.
const maxRegionPages = 1 << 16 // 256MiB ceiling per region's page-state slice

func newTable(mapper rawMapper) (*table, error) {
	poolBytes := uintptr(MaxRegions * maxRegionPages)

	addr, err := mapper.reserveReadWrite(poolBytes)
	if err != nil {
		return nil, err
	}

	pool := unsafeByteView(addr, int(poolBytes))

	t := &table{
		slots:   make([]Region, MaxRegions),
		mapper:  mapper,
		pageBuf: bytesAsPageStates(pool),
	}

	return t, nil
}

// insert claims a free slot for a brand-new region. It never allocates: the
// per-region page-state slice is carved out of the bootstrap pool by index.
func (t *table) insert(base, size uintptr, remoteID RegionID) (*Region, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].active {
			continue
		}

		pages := int((size + PageSize - 1) / PageSize)
		if pages > maxRegionPages {
			return nil, ErrOutOfSlots
		}

		buf := t.pageBuf[i*maxRegionPages : i*maxRegionPages+pages]
		for j := range buf {
			buf[j] = 0
		}

		t.slots[i] = Region{
			base:      base,
			size:      size,
			remoteID:  remoteID,
			pageState: buf,
			active:    true,
		}

		return &t.slots[i], nil
	}

	return nil, ErrOutOfSlots
}

// lookupExact returns the active region whose base is exactly addr.
func (t *table) lookupExact(addr uintptr) *Region {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lookupExactLocked(addr)
}

// lookupExactLocked is lookupExact for callers already holding t.mu (the
// Fault Handler and Writeback Worker compose several lookups into one
// critical section via withLock).
func (t *table) lookupExactLocked(addr uintptr) *Region {
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].base == addr {
			return &t.slots[i]
		}
	}

	return nil
}

// lookupContaining returns the active region containing addr, if any.
func (t *table) lookupContaining(addr uintptr) *Region {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lookupContainingLocked(addr)
}

// lookupContainingLocked is lookupContaining for callers already holding
// t.mu.
func (t *table) lookupContainingLocked(addr uintptr) *Region {
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].containsAddr(addr) {
			return &t.slots[i]
		}
	}

	return nil
}

// release clears a slot, making it available for reuse. The slot's
// page-state buffer is left in place (it belongs to the bootstrap pool) and
// is zeroed the next time insert() reuses the slot.
func (t *table) release(r *Region) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r.active = false
	r.base = 0
	r.size = 0
	r.remoteID = 0
}

// withLock runs fn while holding the table mutex. The Fault Handler uses
// this for the brief, bounded lookups spec §4.4 permits from a fault
// context, and the Writeback Worker uses it to bound each page's critical
// section. fn must only call the *Locked family of helpers, never the
// plain (self-locking) ones, or it will deadlock against this same mutex.
func (t *table) withLock(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

// forEachActiveLocked calls fn for every active region's pointer. Callers
// must already hold t.mu (via withLock); fn must not mutate the slot slice
// itself (insert/release do that under the same lock).
func (t *table) forEachActiveLocked(fn func(*Region)) {
	for i := range t.slots {
		if t.slots[i].active {
			fn(&t.slots[i])
		}
	}
}
