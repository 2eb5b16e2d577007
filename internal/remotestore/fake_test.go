package remotestore

import (
	"bytes"
	"context"
	"testing"
)

func TestFakeClientAllocFetchStore(t *testing.T) {
	c := NewFakeClient()

	id, err := c.VMAlloc(context.Background(), 4096)
	if err != nil {
		t.Fatalf("VMAlloc: %v", err)
	}

	buf := make([]byte, 4096)

	n, err := c.VMFetch(context.Background(), id, 0, buf)
	if err != nil {
		t.Fatalf("VMFetch on never-written page: %v", err)
	}

	if n != 0 {
		t.Fatalf("VMFetch on never-written page returned n=%d, want 0", n)
	}

	page := bytes.Repeat([]byte{0xAB}, 4096)

	if err := c.VMStore(context.Background(), id, 0, page); err != nil {
		t.Fatalf("VMStore: %v", err)
	}

	stored, ok := c.PageAt(id, 0)
	if !ok || !bytes.Equal(stored, page) {
		t.Fatalf("PageAt after VMStore = %v, %v", stored, ok)
	}

	if err := c.VMFree(context.Background(), id); err != nil {
		t.Fatalf("VMFree: %v", err)
	}

	if _, ok := c.PageAt(id, 0); ok {
		t.Fatalf("PageAt returned data for a freed region")
	}
}

func TestFakeClientAllocFailures(t *testing.T) {
	c := NewFakeClient()
	c.AllocFailures = 2

	if _, err := c.VMAlloc(context.Background(), 4096); err == nil {
		t.Fatalf("VMAlloc succeeded despite AllocFailures")
	}

	if _, err := c.VMAlloc(context.Background(), 4096); err == nil {
		t.Fatalf("VMAlloc succeeded despite AllocFailures")
	}

	if _, err := c.VMAlloc(context.Background(), 4096); err != nil {
		t.Fatalf("VMAlloc failed after AllocFailures exhausted: %v", err)
	}
}

func TestFakeClientStoreFailures(t *testing.T) {
	c := NewFakeClient()

	id, err := c.VMAlloc(context.Background(), 4096)
	if err != nil {
		t.Fatalf("VMAlloc: %v", err)
	}

	c.StoreFailures = 1

	if err := c.VMStore(context.Background(), id, 0, make([]byte, 4096)); err == nil {
		t.Fatalf("VMStore succeeded despite StoreFailures")
	}

	if err := c.VMStore(context.Background(), id, 0, make([]byte, 4096)); err != nil {
		t.Fatalf("VMStore failed after StoreFailures exhausted: %v", err)
	}
}
