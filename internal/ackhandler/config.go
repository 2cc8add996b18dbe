package ackhandler

import (
	"time"

	"github.com/quictools/recovery/internal/protocol"
)

// Config bundles the tunables RFC 9002 specifies as constants. The
// defaults returned by DefaultConfig are the RFC values; tests shrink
// Granularity/TimerTick to make time-threshold behavior exercisable
// without sleeping for milliseconds.
type Config struct {
	// PacketThreshold is kPacketThreshold: the number of packets that
	// must arrive after a given packet, acked, before it is considered
	// lost by reordering.
	PacketThreshold protocol.PacketNumber
	// TimeThresholdNumerator and TimeThresholdDenominator together are
	// kTimeThreshold, applied as a fraction to avoid floating point:
	// lossDelay = latestOrSmoothedRTT * Numerator / Denominator.
	TimeThresholdNumerator   int64
	TimeThresholdDenominator int64
	// Granularity is kGranularity, the system timer granularity floor.
	Granularity time.Duration
	// InitialRTT is kInitialRTT, the RTT estimate used before any
	// sample has been taken.
	InitialRTT time.Duration
	// TimerTick is how often the Timer Scheduler's background loop
	// polls the loss-detection alarm, rather than arming a one-shot
	// per-deadline timer.
	TimerTick time.Duration
	// MaxDatagramSize is the current maximum datagram size; it is
	// stored but not used by the anti-amplification check.
	// AmplificationFactor bounds the anti-amplification budget: a server
	// that hasn't validated the client's address may send at most
	// AmplificationFactor times what it has received.
	MaxDatagramSize     protocol.ByteCount
	AmplificationFactor protocol.ByteCount
}

// DefaultConfig returns RFC 9002's recommended constants.
func DefaultConfig() Config {
	return Config{
		PacketThreshold:          3,
		TimeThresholdNumerator:   9,
		TimeThresholdDenominator: 8,
		Granularity:              time.Millisecond,
		InitialRTT:               333 * time.Millisecond,
		TimerTick:                25 * time.Millisecond,
		MaxDatagramSize:          1200,
		AmplificationFactor:      3,
	}
}
