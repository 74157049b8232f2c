//go:build linux

package arpwire

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// OpenRawARPSocket opens an AF_PACKET/SOCK_RAW socket bound to ifindex
// that delivers only ARP frames (of any opcode) whose sender or target
// protocol address equals candidate and whose sender hardware address
// is not mac — the socket primitive contract of spec.md §6. Filtering
// happens in the kernel via a classic BPF program attached with
// SO_ATTACH_FILTER, so the reactor never wakes the instance for
// traffic it would immediately discard.
func OpenRawARPSocket(ifindex int, mac net.HardwareAddr, candidate uint32) (int, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(etherTypeARP)))
	if err != nil {
		return -1, fmt.Errorf("arpwire: socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{
		Protocol: htons(etherTypeARP),
		Ifindex:  ifindex,
	}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("arpwire: bind: %w", err)
	}

	var macArr [6]byte
	copy(macArr[:], mac)

	raw, err := buildFilter(candidate, macArr)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("arpwire: compile filter: %w", err)
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("arpwire: attach filter: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("arpwire: set nonblocking: %w", err)
	}

	return fd, nil
}

// CloseRawARPSocket releases a socket returned by OpenRawARPSocket.
func CloseRawARPSocket(fd int) error {
	return unix.Close(fd)
}

// ReadFrame reads one frame from fd into a freshly allocated buffer,
// parsing it into a Frame. It returns ErrShortFrame or a parse error
// exactly as Parse does; a failed read (including EAGAIN/EWOULDBLOCK)
// is returned as a *ReadError wrapping the syscall error, so the IO
// callback can tell "nothing left to read" apart from a real failure.
func ReadFrame(fd int) (Frame, error) {
	buf := make([]byte, 256)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return Frame{}, &ReadError{Err: err}
	}
	return Parse(buf[:n])
}
