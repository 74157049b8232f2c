package arpwire

import "golang.org/x/net/bpf"

// buildFilter compiles the classic BPF program implementing spec.md
// §6's socket contract: deliver only ARP frames (of any opcode) whose sender or
// target protocol address equals candidate, and whose sender hardware
// address is not mac (the self-filter — without it the engine would
// see its own probes and announcements as conflicts). Offsets assume
// a SOCK_RAW AF_PACKET capture, i.e. the full Ethernet header is
// present, matching Frame's layout in frame.go.
func buildFilter(candidate uint32, mac [6]byte) ([]bpf.RawInstruction, error) {
	macHi := uint32(mac[0])<<24 | uint32(mac[1])<<16 | uint32(mac[2])<<8 | uint32(mac[3])
	macLo := uint32(mac[4])<<8 | uint32(mac[5])

	const accept = 0xffff

	prog := []bpf.Instruction{
		// 0-1: ethertype must be ARP
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeARP, SkipFalse: 17},
		// 2-3: hardware type must be Ethernet
		bpf.LoadAbsolute{Off: 14, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: hwTypeEther, SkipFalse: 15},
		// 4-5: protocol type must be IPv4
		bpf.LoadAbsolute{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoTypeIP4, SkipFalse: 13},
		// 6-7: hardware address length must be 6
		bpf.LoadAbsolute{Off: 18, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: hwAddrLen, SkipFalse: 11},
		// 8-9: protocol address length must be 4
		bpf.LoadAbsolute{Off: 19, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: protoAddrLen, SkipFalse: 9},
		// 10-11: sender protocol address == candidate? skip the
		// target-address check (12-13) and land on the self-filter (14).
		bpf.LoadAbsolute{Off: 28, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: candidate, SkipTrue: 2},
		// 12-13: else, target protocol address must equal candidate
		bpf.LoadAbsolute{Off: 38, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: candidate, SkipFalse: 5},
		// 14-15: self-filter, high 4 bytes of sender hardware address
		bpf.LoadAbsolute{Off: 22, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: macHi, SkipFalse: 2},
		// 16-17: self-filter, low 2 bytes of sender hardware address;
		// full match means this is our own transmitted frame — reject.
		bpf.LoadAbsolute{Off: 26, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: macLo, SkipTrue: 1},
		// 18: accept — whole frame
		bpf.RetConstant{Val: accept},
		// 19: reject
		bpf.RetConstant{Val: 0},
	}

	return bpf.Assemble(prog)
}
