// Package config reads the environment variables and optional hot-reload
// file that govern the paging engine's routing threshold and remote store
// endpoint (spec §6, SPEC_FULL.md §2 and §6). Grounded on the teacher's
// plain os.Getenv usage in cmd/orizon/pkg/commands — no flag/viper/cobra
// config layer, since the allocator hooks have no command line of their
// own.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

const (
	envThresholdMB = "REMOTE_ALLOC_THRESHOLD_MB"
	envSocketPath  = "REMOTE_SOCKET"
	envConfigFile  = "REMOTE_CONFIG_FILE"

	defaultThresholdMB = 8
	defaultSocketName  = "memcloud.sock"
)

// Config holds the routing threshold and remote endpoint. The threshold is
// read atomically so the Allocator Surface's hot path never blocks on a
// config reload in progress.
type Config struct {
	thresholdBytes atomic.Uint64
	SocketPath     string
}

// Load reads the environment per spec §6: REMOTE_ALLOC_THRESHOLD_MB
// (default 8, interpreted as megabytes) and REMOTE_SOCKET (default
// /tmp/memcloud.sock). If REMOTE_CONFIG_FILE is set, it also starts a
// fsnotify watch that can override the threshold without a process
// restart (SPEC_FULL.md §2, §6).
func Load() (*Config, error) {
	mb := defaultThresholdMB

	if v := os.Getenv(envThresholdMB); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s=%q: %w", envThresholdMB, v, err)
		}

		mb = parsed
	}

	socket := os.Getenv(envSocketPath)
	if socket == "" {
		socket = "/tmp/" + defaultSocketName
	}

	c := &Config{SocketPath: socket}
	c.thresholdBytes.Store(uint64(mb) * 1024 * 1024)

	if path := os.Getenv(envConfigFile); path != "" {
		if err := c.watchConfigFile(path); err != nil {
			// A hot-reload watcher is a convenience; its absence must
			// never prevent the engine from routing allocations using
			// the environment-derived threshold already loaded above.
			return c, fmt.Errorf("watch %s: %w", envConfigFile, err)
		}
	}

	return c, nil
}

// Threshold returns the current routing threshold in bytes.
func (c *Config) Threshold() uint64 {
	return c.thresholdBytes.Load()
}

// watchConfigFile starts an fsnotify watch on path's directory and reloads
// threshold_mb from it on every Write/Create event, following the same
// watch-the-directory approach remotestore's socketWatcher uses (the file
// may not exist at startup, and editors commonly replace-rather-than-write
// a file, which surfaces as Remove+Create on the directory, not Write on
// the file).
func (c *Config) watchConfigFile(path string) error {
	if err := c.reloadFromFile(path); err != nil {
		// Missing or malformed at startup is not fatal: the
		// environment-derived default threshold already applies.
		_ = err
	}

	dir := filepath.Dir(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if filepath.Base(ev.Name) == filepath.Base(path) {
					_ = c.reloadFromFile(path)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return nil
}

// reloadFromFile parses a small KEY=VALUE file and applies threshold_mb if
// present (SPEC_FULL.md §6).
func (c *Config) reloadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key != "threshold_mb" {
			continue
		}

		mb, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("threshold_mb=%q: %w", value, err)
		}

		c.thresholdBytes.Store(uint64(mb) * 1024 * 1024)
	}

	return sc.Err()
}
