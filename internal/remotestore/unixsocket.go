package remotestore

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
)

// UnixSocketClient talks to the paging daemon over a Unix domain socket
// using the frame protocol in wire.go. It is this repo's one concrete
// Client implementation (SPEC_FULL.md §4.3a); production deployments may
// swap in another transport behind the same interface.
type UnixSocketClient struct {
	mu   sync.Mutex
	conn net.Conn

	socketPath string
	nextReqID  uint64

	ready         atomic.Bool
	daemonVersion *semver.Version

	watcher *socketWatcher
}

// NewUnixSocketClient constructs a client with no active connection.
// InitWithPath must be called before any VM* method succeeds.
func NewUnixSocketClient() *UnixSocketClient {
	return &UnixSocketClient{}
}

func (c *UnixSocketClient) InitWithPath(ctx context.Context, socketPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.socketPath = socketPath

	err := c.dialLocked(ctx)

	// Start the watcher even when the first dial fails, so a daemon that
	// binds its socket later is picked up by onSocketRecreated.
	c.startWatcherLocked()

	return err
}

// dialLocked establishes a fresh connection and completes the version
// handshake. Callers must hold c.mu.
func (c *UnixSocketClient) dialLocked(ctx context.Context) error {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		c.ready.Store(false)
		return fmt.Errorf("dial remote store at %s: %w", c.socketPath, err)
	}

	if err := writeFrame(conn, frame{op: opHello, payload: []byte(clientVersion)}); err != nil {
		conn.Close()
		c.ready.Store(false)

		return err
	}

	resp, err := readFrame(conn)
	if err != nil {
		conn.Close()
		c.ready.Store(false)

		return fmt.Errorf("read hello response: %w", err)
	}

	v, err := negotiateVersion(string(resp.payload))
	if err != nil {
		conn.Close()
		c.ready.Store(false)

		return err
	}

	if c.conn != nil {
		c.conn.Close()
	}

	c.conn = conn
	c.daemonVersion = v
	c.ready.Store(true)

	return nil
}

func (c *UnixSocketClient) startWatcherLocked() {
	if c.watcher != nil {
		return
	}

	w, err := newSocketWatcher(c.socketPath, c.onSocketRecreated)
	if err != nil {
		// A watcher is a reconnect convenience, not a correctness
		// requirement: VM* calls still surface ErrUnavailable and the
		// caller can retry InitWithPath by hand.
		return
	}

	c.watcher = w
}

// onSocketRecreated is the fsnotify callback invoked when the daemon's
// socket path reappears after a restart (SPEC_FULL.md §4.3a).
func (c *UnixSocketClient) onSocketRecreated() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.dialLocked(context.Background())
}

func (c *UnixSocketClient) Ready() bool { return c.ready.Load() }

func (c *UnixSocketClient) roundTrip(req frame) (frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready.Load() || c.conn == nil {
		return frame{}, ErrUnavailable
	}

	req.requestID = atomic.AddUint64(&c.nextReqID, 1)

	if err := writeFrame(c.conn, req); err != nil {
		c.ready.Store(false)
		return frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := readFrame(c.conn)
	if err != nil {
		c.ready.Store(false)
		return frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp, nil
}

func (c *UnixSocketClient) VMAlloc(_ context.Context, size uint64) (RegionID, error) {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], size)

	resp, err := c.roundTrip(frame{op: opAlloc, payload: payload[:]})
	if err != nil {
		return 0, err
	}

	if len(resp.payload) != 8 {
		return 0, fmt.Errorf("vm_alloc: malformed response (%d bytes)", len(resp.payload))
	}

	return RegionID(binary.BigEndian.Uint64(resp.payload)), nil
}

func (c *UnixSocketClient) VMFree(_ context.Context, id RegionID) error {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], uint64(id))

	_, err := c.roundTrip(frame{op: opFree, payload: payload[:]})

	return err
}

func (c *UnixSocketClient) VMFetch(_ context.Context, id RegionID, pageIndex uint64, buf []byte) (int, error) {
	var payload [16]byte
	binary.BigEndian.PutUint64(payload[0:8], uint64(id))
	binary.BigEndian.PutUint64(payload[8:16], pageIndex)

	resp, err := c.roundTrip(frame{op: opFetch, payload: payload[:]})
	if err != nil {
		return 0, err
	}

	n := copy(buf, resp.payload)

	return n, nil
}

func (c *UnixSocketClient) VMStore(_ context.Context, id RegionID, pageIndex uint64, buf []byte) error {
	payload := make([]byte, 16+len(buf))
	binary.BigEndian.PutUint64(payload[0:8], uint64(id))
	binary.BigEndian.PutUint64(payload[8:16], pageIndex)
	copy(payload[16:], buf)

	_, err := c.roundTrip(frame{op: opStore, payload: payload})

	return err
}

func (c *UnixSocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		c.watcher.stop()
	}

	c.ready.Store(false)

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
