package acd

import "github.com/ipv4acd/ipv4acd/internal/arpwire"

// Classify reports whether a received ARP frame constitutes a
// conflict for the watched address addr (spec.md §4.2). Only the
// sender protocol address is examined: "a frame is classified as a
// conflict if and only if its sender protocol address equals the
// watched address" — a frame that merely targets addr (TPA == addr,
// SPA == 0, i.e. someone else probing the same candidate) is not by
// itself a conflict here. The raw-socket self-filter has already
// removed our own transmissions, and Parse has already rejected
// anything that isn't a well-formed Ethernet ARP/IPv4 frame (of any
// opcode), so Classify only
// has to compare one field.
func Classify(f arpwire.Frame, addr uint32) bool {
	return f.SPA == addr
}
