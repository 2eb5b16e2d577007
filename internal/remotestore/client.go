// Package remotestore is the client side of the remote memory store: the
// opaque external service spec.md §6 describes as exposing vm_alloc,
// vm_free, vm_fetch and vm_store. This package never implements the daemon,
// only how this process talks to it.
package remotestore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by any RPC made while the client has no live
// connection to the daemon (never connected, handshake rejected, or the
// connection dropped and hasn't been reestablished yet).
var ErrUnavailable = errors.New("remotestore: store unavailable")

// RegionID is the opaque identifier the store assigns to a remote
// allocation; it round-trips through engine.RegionID at call sites.
type RegionID uint64

// Client is the remote store client surface from spec.md §6.
type Client interface {
	// InitWithPath performs the one-shot connection bring-up described in
	// spec §4.7: dial the daemon at socketPath and complete the version
	// handshake. The engine calls this lazily, on the first hook call whose
	// size reaches the routing threshold, so that early library-load
	// allocations never block on a daemon that isn't reachable yet.
	InitWithPath(ctx context.Context, socketPath string) error

	// Ready reports whether the client has completed InitWithPath
	// successfully and has not since lost its connection.
	Ready() bool

	// VMAlloc requests a new remote region of size bytes.
	VMAlloc(ctx context.Context, size uint64) (RegionID, error)

	// VMFree releases a previously allocated remote region.
	VMFree(ctx context.Context, id RegionID) error

	// VMFetch reads page pageIndex of region id into buf (len(buf) ==
	// PageSize) and returns the number of bytes the store actually had. A
	// short read means the remainder is conceptually zero (spec §4.4 step
	// 4, §7 Kind 5).
	VMFetch(ctx context.Context, id RegionID, pageIndex uint64, buf []byte) (int, error)

	// VMStore writes page pageIndex of region id from buf to the store.
	VMStore(ctx context.Context, id RegionID, pageIndex uint64, buf []byte) error

	// Close tears down the connection. Not part of spec.md's surface
	// (teardown is host-owned per spec §9) but needed for clean test
	// shutdown.
	Close() error
}
