package congestion

import (
	"sync/atomic"

	"github.com/quictools/recovery/internal/protocol"
)

// AdditiveIncrease is a minimal SendAlgorithm used by the integration
// tests and examples in this module. It is not a production
// congestion controller — the real algorithm (Cubic, Reno, BBR, ...)
// is explicitly out of this module's scope — it exists
// only so Handler can be exercised end to end without a mock for every
// call.
type AdditiveIncrease struct {
	maxDatagramSize protocol.ByteCount
	window          atomic.Int64
	extraCredit     atomic.Int64
}

// NewAdditiveIncrease creates a reference congestion controller
// starting at a ten-datagram initial window, as QUIC's recovery draft
// recommends.
func NewAdditiveIncrease(maxDatagramSize protocol.ByteCount) *AdditiveIncrease {
	a := &AdditiveIncrease{maxDatagramSize: maxDatagramSize}
	a.window.Store(int64(10 * maxDatagramSize))
	return a
}

var _ SendAlgorithm = &AdditiveIncrease{}

// OnPacketSent is a no-op: this reference controller only reacts to
// acks and losses.
func (a *AdditiveIncrease) OnPacketSent(protocol.ByteCount) {}

// OnPacketAcked grows the window by one MSS per acknowledged packet,
// mimicking additive increase.
func (a *AdditiveIncrease) OnPacketAcked(Packet) {
	a.window.Add(int64(a.maxDatagramSize))
}

// OnPacketsLost halves the window once per loss episode.
func (a *AdditiveIncrease) OnPacketsLost(lost map[protocol.PacketNumber]Packet) {
	if len(lost) == 0 {
		return
	}
	cur := a.window.Load()
	next := cur / 2
	if min := int64(2 * a.maxDatagramSize); next < min {
		next = min
	}
	a.window.Store(next)
}

// ProcessECN is a no-op: ECN-triggered congestion response is part of
// the real controller, out of scope here.
func (a *AdditiveIncrease) ProcessECN(Packet, ECNCounts) {}

// AddExtraCredit grants one extra datagram's worth of send allowance.
func (a *AdditiveIncrease) AddExtraCredit() {
	a.extraCredit.Add(int64(a.maxDatagramSize))
}

// CanSend reports whether bytesInFlight is within the window plus any
// outstanding extra credit, consuming the credit if it was needed.
func (a *AdditiveIncrease) CanSend(bytesInFlight protocol.ByteCount) bool {
	if int64(bytesInFlight) < a.window.Load() {
		return true
	}
	for {
		credit := a.extraCredit.Load()
		if credit <= 0 {
			return false
		}
		if a.extraCredit.CompareAndSwap(credit, credit-int64(a.maxDatagramSize)) {
			return true
		}
	}
}

// GetCongestionWindow returns the current congestion window.
func (a *AdditiveIncrease) GetCongestionWindow() protocol.ByteCount {
	return protocol.ByteCount(a.window.Load())
}
