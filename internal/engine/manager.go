package engine

import (
	"context"
	"fmt"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

// manager is the Region Manager (spec §4.3): it creates and destroys
// regions, reserving protected address space from the raw mapper and
// recording the remote allocation's id in the Region Table.
type manager struct {
	table  *table
	mapper rawMapper
	remote remotestore.Client
}

func newManager(t *table, mapper rawMapper, remote remotestore.Client) *manager {
	return &manager{table: t, mapper: mapper, remote: remote}
}

// create implements spec §4.3 create(size): request a remote id, reserve
// protected address space, claim a table slot, publish. Any failure along
// the way unwinds what it already did.
func (m *manager) create(ctx context.Context, size uintptr) (*Region, error) {
	id, err := m.remote.VMAlloc(ctx, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteAdmit, err)
	}

	base, err := m.mapper.reserve(size)
	if err != nil {
		_ = m.remote.VMFree(ctx, id)
		return nil, fmt.Errorf("%w: %v", ErrAddressExhausted, err)
	}

	region, err := m.table.insert(base, size, RegionID(id))
	if err != nil {
		_ = m.mapper.unreserve(base, size)
		_ = m.remote.VMFree(ctx, id)

		return nil, err
	}

	return region, nil
}

// destroy implements spec §4.3 destroy(base): locate by exact base, unmap,
// clear the slot, release the remote id. Returns ErrNotFound if base does
// not name an active region's start, so the Allocator Surface can fall
// through to the underlying allocator's free.
func (m *manager) destroy(ctx context.Context, base uintptr) error {
	region := m.table.lookupExact(base)
	if region == nil {
		return ErrNotFound
	}

	size := region.size
	remoteID := region.remoteID

	if err := m.mapper.unreserve(base, size); err != nil {
		// An unmap failure leaves the table and the address space out of
		// sync; this is not one of spec §7's recoverable kinds, since a
		// dangling reservation would corrupt every future fault in this
		// range.
		fatal("munmap region at %#x size %d: %v", base, size, err)
	}

	m.table.release(region)

	_ = m.remote.VMFree(ctx, remoteID)

	return nil
}

// realloc implements spec §4.3 realloc(old_base, new_size) for the case
// where old_base names an existing remote region: create a new region,
// copy min(old,new) bytes (faulting in every touched source page), destroy
// the old region.
func (m *manager) realloc(ctx context.Context, oldBase uintptr, newSize uintptr, fault *faultHandler) (*Region, error) {
	oldRegion := m.table.lookupExact(oldBase)
	if oldRegion == nil {
		return nil, ErrNotFound
	}

	newRegion, err := m.create(ctx, newSize)
	if err != nil {
		return nil, err
	}

	copySize := oldRegion.size
	if newSize < copySize {
		copySize = newSize
	}

	// Touching the old range triggers fault-in of every source page still
	// not-resident; touching the new range materialises the destination
	// pages (they're no-access until first touch, same as any remote
	// region). Source and destination never overlap, so direction doesn't
	// matter (spec §4.3).
	if copySize > 0 {
		fault.touchRange(oldRegion.base, copySize)
		fault.touchRange(newRegion.base, copySize)
		copyMemory(newRegion.base, oldRegion.base, copySize)
	}

	if err := m.destroy(ctx, oldBase); err != nil {
		return nil, err
	}

	return newRegion, nil
}
