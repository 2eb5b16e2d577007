package engine

import (
	"context"
	"time"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

// writebackInterval is how often the Writeback Worker sweeps the table for
// dirty pages (spec §4.5). It is a package variable, not a constant, so
// tests can shrink it rather than sleeping through the production interval.
var writebackInterval = 2 * time.Second

// writebackWorker periodically flushes dirty pages of every active region
// to the remote store, then write-protects each flushed page so a
// subsequent write re-faults and is caught by faultHandler.HandleFault's
// already-resident branch (spec §4.4, §9 "write-protect after clean
// writeback" dirty-detection strategy).
type writebackWorker struct {
	table  *table
	mapper rawMapper
	remote remotestore.Client

	stop chan struct{}
	done chan struct{}
}

func newWritebackWorker(t *table, mapper rawMapper, remote remotestore.Client) *writebackWorker {
	return &writebackWorker{
		table:  t,
		mapper: mapper,
		remote: remote,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// start runs the sweep loop in a detached goroutine, grounded on the
// teacher's internal/runtime/numa_optimizer.go and actor_system.go
// ticker-driven background worker shape (tick, do bounded work, check for a
// stop signal).
func (w *writebackWorker) start() {
	go func() {
		defer close(w.done)

		ticker := time.NewTicker(writebackInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.sweep(context.Background())
			}
		}
	}()
}

func (w *writebackWorker) Stop() {
	close(w.stop)
	<-w.done
}

// sweep walks every active region's dirty pages and writes each back. Spec
// §7 Kind 8 ("remote store unavailable during writeback") is handled by
// simply leaving the dirty flag set and retrying on the next tick; nothing
// here is fatal, since a writeback failure never corrupts local state, only
// delays it reaching the remote store.
func (w *writebackWorker) sweep(ctx context.Context) {
	type dirtyPage struct {
		region   *Region
		pageIdx  int
		pageAddr uintptr
	}

	var dirty []dirtyPage

	w.table.withLock(func() {
		w.table.forEachActiveLocked(func(r *Region) {
			for i, ps := range r.pageState {
				if ps.dirty() {
					dirty = append(dirty, dirtyPage{region: r, pageIdx: i, pageAddr: r.pageAddr(i)})
				}
			}
		})
	})

	for _, d := range dirty {
		w.writebackOne(ctx, d.region, d.pageIdx, d.pageAddr)
	}
}

// writebackOne flushes a single page's contents, grounded on spec §4.5's
// per-page critical section: the page is read while briefly unprotected
// from concurrent mutation only by virtue of already being read/write
// (writers continue to race with this read, same as any ordinary memory —
// spec §9 accepts last-writer-wins, not snapshot isolation).
func (w *writebackWorker) writebackOne(ctx context.Context, region *Region, pageIdx int, pageAddr uintptr) {
	var stillAlive bool
	var remoteID RegionID

	w.table.withLock(func() {
		still := w.table.lookupExactLocked(region.base)
		stillAlive = still != nil && still == region && region.pageState[pageIdx].dirty()
		remoteID = region.remoteID
	})

	if !stillAlive {
		return
	}

	buf := pageSlice(pageAddr)

	if err := w.remote.VMStore(ctx, remotestore.RegionID(remoteID), uint64(pageIdx), buf); err != nil {
		// Leave the dirty flag set; the next sweep retries (spec §7 Kind 8).
		logf("writeback: VMStore region %d page %d failed, will retry: %v", remoteID, pageIdx, err)
		return
	}

	if err := w.mapper.protectReadOnly(pageAddr); err != nil {
		// The dirty flag stays set and the page stays writable, so the
		// next sweep stores it again and retries the write-protect; this
		// does not risk data loss, so it is not fatal.
		return
	}

	w.table.withLock(func() {
		still := w.table.lookupExactLocked(region.base)
		if still == nil || still != region {
			return
		}

		region.pageState[pageIdx] &^= pageDirty
	})
}
