package engine

import (
	"context"
	"sync"

	"github.com/vibhanshu2001/memcloud/internal/config"
	"github.com/vibhanshu2001/memcloud/internal/remotestore"
)

// Engine is the process-wide singleton spec §9 "Cyclic / global state"
// describes: table, threshold, remote_client, guard (thread-local) and
// worker_handle, gathered into one struct because they are intrinsically
// process-wide and constructed exactly once at library load. Signal handler
// installation is not held here; the cgo shim does it.
// Teardown is deliberately not supported; the host process owns its
// lifetime.
type Engine struct {
	table  *table
	local  *localAllocator
	mapper rawMapper
	fault  *faultHandler
	worker *writebackWorker
	guard  *guard

	cfg    *config.Config
	remote remotestore.Client

	remoteOnce sync.Once
	remoteErr  error
}

var (
	bootstrapOnce sync.Once
	engineSingle  *Engine
	bootstrapErr  error
)

// newRemoteClient is a package variable so tests can substitute
// remotestore.NewFakeClient instead of dialing a real Unix socket.
var newRemoteClient = func() remotestore.Client { return remotestore.NewUnixSocketClient() }

// Bootstrap performs the one-shot installation spec §4.7 describes:
// initialise symbol pointers (here, the raw mapper) and the region table,
// spawn the writeback worker detached. The remote client's own connection is
// deferred to ensureRemote, called lazily on the first hook that actually
// needs it, so that early library-load allocations never block on a daemon
// that may not yet be reachable.
func Bootstrap() (*Engine, error) {
	bootstrapOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			if cfg == nil {
				bootstrapErr = err
				return
			}

			// Only the hot-reload watcher failed; the environment-derived
			// config is still usable.
			logf("config: %v", err)
		}

		t, err := newTable(defaultMapper)
		if err != nil {
			// spec §7 Kind 1: table allocation failed at bootstrap is fatal.
			fatal("bootstrap: region table: %v", err)
			bootstrapErr = err
			return
		}

		remote := newRemoteClient()

		e := &Engine{
			table:  t,
			local:  newLocalAllocator(defaultMapper),
			mapper: defaultMapper,
			guard:  newGuard(),
			cfg:    cfg,
			remote: remote,
		}

		e.fault = newFaultHandler(t, defaultMapper, remote)
		e.worker = newWritebackWorker(t, defaultMapper, remote)
		e.worker.start()

		engineSingle = e

		logf("bootstrap complete: threshold=%d socket=%s", cfg.Threshold(), cfg.SocketPath)
	})

	return engineSingle, bootstrapErr
}

// ensureRemote dials the remote store exactly once, on demand. A dial
// failure leaves the client simply "not ready" (spec §3 "Protocol handshake
// state", §7 Kind 2) rather than aborting the process: large allocations
// route remote only once the client answers Ready().
func (e *Engine) ensureRemote(ctx context.Context) {
	e.remoteOnce.Do(func() {
		e.remoteErr = e.remote.InitWithPath(ctx, e.cfg.SocketPath)
		if e.remoteErr != nil {
			logf("remote store not ready at %s: %v — large allocations stay local until a watcher reconnect", e.cfg.SocketPath, e.remoteErr)
		}
	})
}

// Shutdown stops the writeback worker. Not part of spec.md's surface (the
// host process owns the engine's lifetime per §9) but needed so tests don't
// leak goroutines across cases.
func (e *Engine) Shutdown() {
	e.worker.Stop()
}
