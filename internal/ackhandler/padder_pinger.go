package ackhandler

import "github.com/quictools/recovery/internal/protocol"

// Pinger is asked to arrange for a PING frame to go out at the given
// encryption level — the PTO probe mechanism, so that a probe packet
// is itself ack-eliciting even if nothing else needed retransmitting.
type Pinger interface {
	Request(level protocol.EncryptionLevel)
}

// Padder is asked to arrange for a datagram to be padded to at least
// the anti-amplification-relevant size at the given encryption level —
// used for the client's anti-deadlock probe before it has 1-RTT keys,
// where a bare Initial/Handshake probe might otherwise be too small to
// usefully retransmit.
type Padder interface {
	Request(level protocol.EncryptionLevel)
}
