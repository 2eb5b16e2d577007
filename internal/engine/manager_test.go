package engine

import (
	"context"
	"testing"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

func TestManagerCreateDestroy(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)

	region, err := mgr.create(context.Background(), PageSize*4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if tbl.lookupExact(region.Base()) == nil {
		t.Fatalf("created region not found in table")
	}

	if err := mgr.destroy(context.Background(), region.Base()); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	if tbl.lookupExact(region.Base()) != nil {
		t.Fatalf("region still in table after destroy")
	}

	if _, ok := remote.PageAt(remotestore.RegionID(region.RemoteID()), 0); ok {
		t.Fatalf("remote still holds data for a freed region")
	}
}

func TestManagerDestroyUnknownAddress(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	mgr := newManager(tbl, defaultMapper, remotestore.NewFakeClient())

	if err := mgr.destroy(context.Background(), 0xdeadbeef); err != ErrNotFound {
		t.Fatalf("destroy unknown addr = %v, want ErrNotFound", err)
	}
}

func TestManagerCreateUnwindsOnTableExhaustion(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)

	for i := 0; i < MaxRegions; i++ {
		if _, err := tbl.insert(uintptr(i+1)*PageSize*8, PageSize, RegionID(i)); err != nil {
			t.Fatalf("prefill insert %d: %v", i, err)
		}
	}

	if _, err := mgr.create(context.Background(), PageSize); err != ErrOutOfSlots {
		t.Fatalf("create on exhausted table = %v, want ErrOutOfSlots", err)
	}
}

func TestManagerRealloc(t *testing.T) {
	tbl, err := newTable(defaultMapper)
	if err != nil {
		t.Fatalf("newTable: %v", err)
	}

	remote := remotestore.NewFakeClient()
	mgr := newManager(tbl, defaultMapper, remote)
	fault := newFaultHandler(tbl, defaultMapper, remote)

	oldRegion, err := mgr.create(context.Background(), PageSize*2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fault.touchRange(oldRegion.Base(), PageSize*2)

	oldBytes := unsafeByteView(oldRegion.Base(), PageSize*2)
	oldBytes[0] = 0x11
	oldBytes[PageSize] = 0x22

	newRegion, err := mgr.realloc(context.Background(), oldRegion.Base(), PageSize*4, fault)
	if err != nil {
		t.Fatalf("realloc: %v", err)
	}

	if newRegion.Size() != PageSize*4 {
		t.Fatalf("new region size = %d, want %d", newRegion.Size(), PageSize*4)
	}

	newBytes := unsafeByteView(newRegion.Base(), PageSize*2)
	if newBytes[0] != 0x11 || newBytes[PageSize] != 0x22 {
		t.Fatalf("realloc did not preserve the first two pages' contents")
	}

	if tbl.lookupExact(oldRegion.Base()) != nil {
		t.Fatalf("old region still present after realloc")
	}
}
