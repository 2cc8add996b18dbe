package ackhandler

import (
	"time"

	"github.com/quictools/recovery/internal/protocol"
)

// packetNumberSpace holds the per-space scalars the Loss Detector and
// Timer Scheduler consult: the registry of outstanding packets plus
// the running state that ties a space's packets together (largest
// acked, the two alarm anchor times, and the latest-ACK ECN counts).
type packetNumberSpace struct {
	registry *registry

	largestAcked protocol.PacketNumber
	largestSent  protocol.PacketNumber

	// lossTime is set by the Loss Detector when a packet in this space
	// is a time-threshold candidate but hasn't yet aged past the
	// threshold; it arms the early retransmit / time-loss timer.
	lossTime time.Time
	// lastAckElicitingPacketTime anchors the PTO timer: the PTO period
	// is measured from the last ack-eliciting packet sent in this
	// space.
	lastAckElicitingPacketTime time.Time
	// lastCryptoPacketTime anchors the crypto-retransmission alarm for
	// the Initial and Handshake spaces.
	lastCryptoPacketTime time.Time

	// ect0, ect1, ce are the ECN counters reported by the most recently
	// processed ACK in this space, forwarded to the congestion
	// controller for ECN validation.
	ect0, ect1, ce uint64
}

func newPacketNumberSpace() *packetNumberSpace {
	return &packetNumberSpace{
		registry:     newRegistry(),
		largestAcked: protocol.InvalidPacketNumber,
		largestSent:  protocol.InvalidPacketNumber,
	}
}
