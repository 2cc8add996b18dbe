// Package logging defines the observability contract the loss
// detection core calls into: timer transitions, loss/ack events, RTT
// metric updates, and ECN validation outcomes.
//
// Limited to the enums this core actually emits: packet-drop reasons,
// timeout reasons, and congestion-controller phase all belong to
// collaborators outside this module and aren't carried over unused.
package logging

import "github.com/quictools/recovery/internal/protocol"

// PacketLossReason explains why a packet was declared lost.
type PacketLossReason uint8

const (
	// PacketLossReorderingThreshold is used when a packet is deemed
	// lost because k_packet_threshold later packets have been acked.
	PacketLossReorderingThreshold PacketLossReason = iota
	// PacketLossTimeThreshold is used when a packet is deemed lost
	// because enough time has passed since it was sent.
	PacketLossTimeThreshold
)

func (r PacketLossReason) String() string {
	switch r {
	case PacketLossReorderingThreshold:
		return "reordering_threshold"
	case PacketLossTimeThreshold:
		return "time_threshold"
	default:
		return "invalid packet loss reason"
	}
}

// TimerType is the type of the loss detection timer that fired or was
// (re)armed.
type TimerType uint8

const (
	// TimerTypeACK is the timer type for the time-threshold /
	// early-retransmit loss timer.
	TimerTypeACK TimerType = iota
	// TimerTypeCrypto is the timer type for the crypto retransmission
	// alarm.
	TimerTypeCrypto
	// TimerTypePTO is the timer type for the probe timeout.
	TimerTypePTO
)

func (t TimerType) String() string {
	switch t {
	case TimerTypeACK:
		return "ack"
	case TimerTypeCrypto:
		return "crypto"
	case TimerTypePTO:
		return "pto"
	default:
		return "invalid timer type"
	}
}

// ECNValidationResult is the outcome reported when forwarding ECN
// counters to the congestion controller. The validation state machine
// itself lives in the congestion controller, out of scope here — this
// core only relays the counters and the verdict.
type ECNValidationResult uint8

const (
	// ECNValidationSuccess: ECN validation passed.
	ECNValidationSuccess ECNValidationResult = iota
	// ECNValidationFailed: the congestion controller rejected ECN.
	ECNValidationFailed
)

func (r ECNValidationResult) String() string {
	switch r {
	case ECNValidationSuccess:
		return "success"
	case ECNValidationFailed:
		return "failed"
	default:
		return "invalid ECN validation result"
	}
}

// PacketLostEvent is the observability hook fired once per packet
// declared lost.
type PacketLostEvent struct {
	Space        protocol.PacketNumberSpace
	PacketNumber protocol.PacketNumber
	PacketType   protocol.PacketType
	Reason       PacketLossReason
}
