package arpwire

import (
	"net"
	"syscall"
)

// SendProbe transmits an ARP probe on fd (spec.md §6 send_probe). It
// returns a non-negative byte count on success, a negative value on
// failure — the same ≥0/negative contract spec.md §6 specifies,
// kept instead of a Go error so callers can treat it exactly like the
// external primitive the spec describes.
func SendProbe(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int {
	return send(fd, ifindex, BuildProbe(mac, candidate))
}

// SendAnnouncement transmits a gratuitous ARP announcement on fd
// (spec.md §6 send_announcement).
func SendAnnouncement(fd, ifindex int, candidate uint32, mac net.HardwareAddr) int {
	return send(fd, ifindex, BuildAnnouncement(mac, candidate))
}

func send(fd, ifindex int, f Frame) int {
	frame := f.Encode()
	addr := &syscall.SockaddrLinklayer{
		Ifindex:  ifindex,
		Halen:    hwAddrLen,
		Protocol: htons(etherTypeARP),
	}
	copy(addr.Addr[:], broadcastMAC)

	if err := syscall.Sendto(fd, frame, 0, addr); err != nil {
		return -1
	}
	return len(frame)
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | (v>>8)&0x00ff
}
