//go:build !linux

package arpwire

import (
	"errors"
	"net"
)

// ErrUnsupported is returned by OpenRawARPSocket on platforms without
// an AF_PACKET equivalent wired up. The engine's raw-socket primitive
// is Linux-specific (AF_PACKET + classic BPF); spec.md §6 leaves the
// socket implementation as an external collaborator, so other
// platforms simply fail to produce one rather than faking a
// filterless socket.
var ErrUnsupported = errors.New("arpwire: raw ARP sockets are not supported on this platform")

func OpenRawARPSocket(ifindex int, mac net.HardwareAddr, candidate uint32) (int, error) {
	return -1, ErrUnsupported
}

func CloseRawARPSocket(fd int) error {
	return ErrUnsupported
}

func ReadFrame(fd int) (Frame, error) {
	return Frame{}, ErrUnsupported
}
