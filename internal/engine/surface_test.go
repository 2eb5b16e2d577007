package engine

import (
	"os"
	"sync"
	"testing"

	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

// withTestEngine bootstraps a fresh Engine singleton backed by a FakeClient
// and a low threshold, for tests that exercise the Allocator Surface end to
// end (SPEC_FULL.md §8). Bootstrap is a process-wide sync.Once in
// production, but tests reset the package-level state so each test gets its
// own isolated engine instead of sharing one across the whole test binary.
func withTestEngine(t *testing.T, thresholdMB string, fn func(*Engine, *remotestore.FakeClient)) {
	t.Helper()

	prevOnce := bootstrapOnce
	prevSingle := engineSingle
	prevErr := bootstrapErr
	prevNewRemote := newRemoteClient

	bootstrapOnce = sync.Once{}
	engineSingle = nil
	bootstrapErr = nil

	fake := remotestore.NewFakeClient()
	newRemoteClient = func() remotestore.Client { return fake }

	os.Setenv("REMOTE_ALLOC_THRESHOLD_MB", thresholdMB)
	defer os.Unsetenv("REMOTE_ALLOC_THRESHOLD_MB")

	e, err := Bootstrap()
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	defer func() {
		e.Shutdown()

		bootstrapOnce = prevOnce
		engineSingle = prevSingle
		bootstrapErr = prevErr
		newRemoteClient = prevNewRemote
	}()

	fn(e, fake)
}

func TestAllocRoutesAboveThreshold(t *testing.T) {
	withTestEngine(t, "0", func(e *Engine, fake *remotestore.FakeClient) {
		addr, err := Alloc(PageSize * 4)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		if e.table.lookupExact(addr) == nil {
			t.Fatalf("large allocation did not create a remote region")
		}
	})
}

func TestAllocBelowThresholdStaysLocal(t *testing.T) {
	withTestEngine(t, "8", func(e *Engine, fake *remotestore.FakeClient) {
		addr, err := Alloc(64)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		if e.table.lookupExact(addr) != nil {
			t.Fatalf("small allocation unexpectedly created a remote region")
		}

		if _, ok := e.local.usableSize(addr); !ok {
			t.Fatalf("small allocation not tracked by the local allocator")
		}
	})
}

func TestAllocAbortsOnRemoteAdmitFailure(t *testing.T) {
	withTestEngine(t, "0", func(e *Engine, fake *remotestore.FakeClient) {
		fake.AllocFailures = 1

		defer func() {
			if recover() == nil {
				t.Fatalf("Alloc did not abort on remote admit failure")
			}
		}()

		withFatalHook(func(format string, args ...interface{}) {
			panic("fatal: " + format)
		}, func() {
			Alloc(PageSize * 4)
		})
	})
}

func TestFreeReleasesRemoteRegion(t *testing.T) {
	withTestEngine(t, "0", func(e *Engine, fake *remotestore.FakeClient) {
		addr, err := Alloc(PageSize * 2)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		if err := Free(addr); err != nil {
			t.Fatalf("Free: %v", err)
		}

		if e.table.lookupExact(addr) != nil {
			t.Fatalf("region still present after Free")
		}
	})
}

func TestReallocCopiesIntoNewRemoteRegion(t *testing.T) {
	withTestEngine(t, "0", func(e *Engine, fake *remotestore.FakeClient) {
		addr, err := Alloc(PageSize * 2)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}

		DefaultFaultOutcome(addr)
		DefaultFaultOutcome(addr + PageSize)

		view := unsafeByteView(addr, PageSize*2)
		view[0] = 1
		view[PageSize] = 2

		newAddr, err := Realloc(addr, PageSize*4)
		if err != nil {
			t.Fatalf("Realloc: %v", err)
		}

		newView := unsafeByteView(newAddr, PageSize*2)
		if newView[0] != 1 || newView[PageSize] != 2 {
			t.Fatalf("realloc did not preserve original contents")
		}

		if e.table.lookupExact(addr) != nil {
			t.Fatalf("old region still present after realloc")
		}
	})
}
