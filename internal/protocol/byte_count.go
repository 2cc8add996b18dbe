package protocol

// ByteCount is used to count bytes.
type ByteCount int64

// PacketType classifies a sent packet for logging/diagnostics only; it
// plays no role in loss-detection or RTT logic.
type PacketType uint8

const (
	// PacketTypeInitial is the packet type of an Initial packet.
	PacketTypeInitial PacketType = iota
	// PacketTypeHandshake is the packet type of a Handshake packet.
	PacketTypeHandshake
	// PacketType0RTT is the packet type of a 0-RTT packet.
	PacketType0RTT
	// PacketType1RTT is the packet type of a 1-RTT packet.
	PacketType1RTT
	// PacketTypeRetry is the packet type of a Retry packet.
	PacketTypeRetry
	// PacketTypeVersionNegotiation is the packet type of a Version
	// Negotiation packet. Packets of this type occupy no packet-number
	// space and are never added to the sent-packet registry.
	PacketTypeVersionNegotiation
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeInitial:
		return "Initial"
	case PacketTypeHandshake:
		return "Handshake"
	case PacketType0RTT:
		return "0-RTT"
	case PacketType1RTT:
		return "1-RTT"
	case PacketTypeRetry:
		return "Retry"
	case PacketTypeVersionNegotiation:
		return "Version Negotiation"
	default:
		return "invalid packet type"
	}
}
