package engine

import (
	"context"
	"testing"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

func TestHandleFaultUnrelatedAddress(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	fault := newFaultHandler(tbl, defaultMapper, remotestore.NewFakeClient())

	if outcome := fault.HandleFault(0x9999999000); outcome != faultUnrelated {
		t.Fatalf("HandleFault on unmanaged address = %v, want faultUnrelated", outcome)
	}
}

func TestHandleFaultFirstTouchZeroFills(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)
	fault := newFaultHandler(tbl, defaultMapper, remote)

	region, err := mgr.create(context.Background(), PageSize*2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if outcome := fault.HandleFault(region.Base()); outcome != faultServiced {
		t.Fatalf("HandleFault first touch = %v, want faultServiced", outcome)
	}

	got := tbl.lookupExact(region.Base())
	if !got.pageState[0].resident() || got.pageState[0].dirty() {
		t.Fatalf("page state after first fault-in = %v, want resident-clean", got.pageState[0])
	}

	view := unsafeByteView(region.Base(), 1)
	if view[0] != 0 {
		t.Fatalf("first byte of a never-written page = %d, want 0", view[0])
	}
}

func TestHandleFaultWriteProtectedPageBecomesDirty(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)
	fault := newFaultHandler(tbl, defaultMapper, remote)

	region, err := mgr.create(context.Background(), PageSize)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fault.HandleFault(region.Base())

	// Simulate the Writeback Worker having write-protected this already
	// clean page.
	if err := defaultMapper.protectReadOnly(region.Base()); err != nil {
		t.Fatalf("protectReadOnly: %v", err)
	}

	if outcome := fault.HandleFault(region.Base()); outcome != faultServiced {
		t.Fatalf("HandleFault on write-protected resident page = %v, want faultServiced", outcome)
	}

	got := tbl.lookupExact(region.Base())
	if !got.pageState[0].resident() || !got.pageState[0].dirty() {
		t.Fatalf("page state after re-dirty = %v, want resident-dirty", got.pageState[0])
	}
}

func TestTouchRangeFaultsInEveryPage(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)
	fault := newFaultHandler(tbl, defaultMapper, remote)

	region, err := mgr.create(context.Background(), PageSize*3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fault.touchRange(region.Base(), PageSize*3)

	got := tbl.lookupExact(region.Base())
	for i, ps := range got.pageState {
		if !ps.resident() {
			t.Fatalf("page %d not resident after touchRange", i)
		}
	}
}
