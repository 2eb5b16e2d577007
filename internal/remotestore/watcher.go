package remotestore

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// socketWatcher watches the daemon socket's parent directory for a Create
// event on the socket's basename, the signal that a restarted daemon has
// re-bound its listening socket (SPEC_FULL.md §4.3a). Watching the
// directory rather than the socket path itself is required on Linux:
// fsnotify cannot watch a path that doesn't exist yet, and the whole point
// is to notice when it starts existing again.
type socketWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

func newSocketWatcher(socketPath string, onRecreated func()) (*socketWatcher, error) {
	dir := filepath.Dir(socketPath)
	base := filepath.Base(socketPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	sw := &socketWatcher{w: w, done: make(chan struct{})}

	go sw.loop(base, onRecreated)

	return sw, nil
}

func (sw *socketWatcher) loop(base string, onRecreated func()) {
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}

			if filepath.Base(ev.Name) == base && (ev.Op&fsnotify.Create != 0) {
				onRecreated()
			}
		case _, ok := <-sw.w.Errors:
			if !ok {
				return
			}
		case <-sw.done:
			return
		}
	}
}

func (sw *socketWatcher) stop() {
	close(sw.done)
	sw.w.Close()
}
