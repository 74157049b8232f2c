// Package acd implements IPv4 Address Conflict Detection per RFC 5227:
// the probe/announce/defend state machine that decides, via ARP on the
// local link, whether a candidate address is already in use.
package acd

import "time"

// Timing parameters from RFC 5227. These are protocol constants, not
// configuration — no deployment should ever need to change them.
const (
	// ProbeWait is the upper bound of the initial random delay before
	// the first probe.
	ProbeWait = 1 * time.Second
	// ProbeNum is the number of probes sent before announcing.
	ProbeNum = 3
	// ProbeMin is the minimum spacing between probes.
	ProbeMin = 1 * time.Second
	// ProbeMax is the maximum spacing between probes.
	ProbeMax = 2 * time.Second
	// AnnounceWait is the delay from the last probe to the first
	// announcement.
	AnnounceWait = 2 * time.Second
	// AnnounceNum is the number of announcements sent.
	AnnounceNum = 2
	// AnnounceInterval is the spacing between announcements.
	AnnounceInterval = 2 * time.Second
	// MaxConflicts is the conflict count at or above which rate
	// limiting applies.
	MaxConflicts = 10
	// RateLimitInterval is the cool-down inserted once MaxConflicts is
	// reached.
	RateLimitInterval = 60 * time.Second
	// DefendInterval is the minimum gap between successive defensive
	// announcements.
	DefendInterval = 10 * time.Second
)
