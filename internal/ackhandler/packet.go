// Package ackhandler is the Sent-Packet Registry, ACK Processor, Loss
// Detector, and Timer Scheduler: the loss detection and RTT estimation
// core of a QUIC endpoint, tracking what has been sent in each of the
// three packet-number spaces and declaring packets lost per RFC 9002.
package ackhandler

import (
	"time"

	"github.com/quictools/recovery/internal/protocol"
)

//go:generate mockgen -package ackhandler -destination mock_ackhandler_test.go github.com/quictools/recovery/internal/ackhandler FrameReactor

// FrameReactor is the weak back-reference a Frame carries to whatever
// generated it. The registry never owns a reactor's lifetime: if the
// frame's originating generator is gone by the time the packet is
// acked or lost, the reactor itself is responsible for no-oping
// (e.g. checking a cancellation flag), the registry just dispatches.
type FrameReactor interface {
	// OnFrameAcked is called once, when the packet carrying this frame
	// is newly acknowledged.
	OnFrameAcked(frameID interface{})
	// OnFrameLost is called once, when the packet carrying this frame
	// is declared lost. It is never called after OnFrameAcked has
	// already fired for the same frame.
	OnFrameLost(frameID interface{})
}

// Frame is a single opaque reference into a sent packet: an ID
// meaningful only to Reactor, plus the non-owning reference back to
// it. The registry carries these around without ever inspecting what
// they mean.
type Frame struct {
	ID      interface{}
	Reactor FrameReactor
}

// Packet is everything the registry needs to remember about one sent
// packet in order to later process an ACK or declare it lost.
type Packet struct {
	PacketNumber protocol.PacketNumber
	Space        protocol.PacketNumberSpace
	PacketType   protocol.PacketType
	SendTime     time.Time
	SentBytes    protocol.ByteCount
	TOS          protocol.TOS

	// AckElicitingFlag is true if this packet carries at least one
	// ack-eliciting frame — only ack-eliciting packets arm timers or
	// count toward the packet-reordering threshold.
	AckElicitingFlag bool
	// IsCryptoPacket is true if this packet carries CRYPTO frames,
	// making it subject to the crypto-retransmission alarm rather than
	// (or in addition to) ordinary loss detection.
	IsCryptoPacket bool
	// InFlight is true if this packet counts toward bytes_in_flight.
	// Packets that carry only ACK/PADDING frames are ack-eliciting-
	// false but may still be in flight; packets that are entirely
	// non-ack-eliciting and non-probe are typically not tracked at all.
	InFlight bool

	Frames []Frame

	declaredLost bool
}

// AckEliciting reports whether this packet requires the peer to send
// an ACK in response.
func (p *Packet) AckEliciting() bool { return p.AckElicitingFlag }
