package remotestore

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// clientVersion is this client's protocol version, sent in the opHello
// frame's payload as a bare semver string.
const clientVersion = "1.2.0"

// acceptedDaemonRange is the daemon protocol range this client speaks to.
// A daemon outside this range fails the handshake (SPEC_FULL.md §3): the
// client never connects, so large allocations simply never route remote
// rather than the process aborting (spec §7 Kind 2 is reserved for a
// request that *has* been routed and then refused).
var acceptedDaemonRange = mustConstraint("^1.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic("remotestore: invalid built-in constraint: " + err.Error())
	}

	return c
}

// negotiateVersion parses the daemon's advertised version string and checks
// it against acceptedDaemonRange.
func negotiateVersion(daemonVersion string) (*semver.Version, error) {
	v, err := semver.NewVersion(daemonVersion)
	if err != nil {
		return nil, fmt.Errorf("parse daemon protocol version %q: %w", daemonVersion, err)
	}

	if !acceptedDaemonRange.Check(v) {
		return nil, fmt.Errorf("daemon protocol version %s not in accepted range %s", v, acceptedDaemonRange)
	}

	return v, nil
}
