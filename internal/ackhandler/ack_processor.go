package ackhandler

import (
	"fmt"
	"time"

	"github.com/quictools/recovery/internal/congestion"
	"github.com/quictools/recovery/internal/protocol"
	"github.com/quictools/recovery/internal/qerr"
	"github.com/quictools/recovery/internal/wire"
	"github.com/quictools/recovery/logging"
)

// ReceivedAck is the ACK Processor: it updates largest_acked, expands
// the ACK frame's ranges, removes every newly acknowledged packet from
// the registry (sampling RTT and notifying frame reactors and the
// congestion controller along the way), forwards ECN counts, runs the
// Loss Detector over what remains, and rearms the loss detection
// timer.
//
// It returns an error only for a protocol violation (an ACK for a
// packet number never sent in this space, or ranges that reach below
// packet number 0): state must not be mutated in that case, so the
// checks run before any other side effect.
func (h *Handler) ReceivedAck(ack *wire.AckFrame, space protocol.PacketNumberSpace, rcvTime time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.space(space)

	if ack.LargestAcked > s.largestSent {
		return &qerr.TransportError{
			ErrorCode:    qerr.ProtocolViolation,
			ErrorMessage: fmt.Sprintf("received ACK for packet %d never sent in %s", ack.LargestAcked, space),
		}
	}
	if ack.LowestAcked() < 0 {
		return &qerr.TransportError{
			ErrorCode:    qerr.ProtocolViolation,
			ErrorMessage: fmt.Sprintf("received ACK ranges below packet number 0 in %s", space),
		}
	}

	largestAckedIncreased := ack.LargestAcked > s.largestAcked
	if largestAckedIncreased {
		s.largestAcked = ack.LargestAcked
	}

	acked, err := h.detectAndRemoveAckedPacketsLocked(ack, space)
	if err != nil {
		return err
	}
	if len(acked) == 0 {
		// Nothing newly acknowledged: still an ACK, but no RTT sample,
		// no loss detection pass, no timer rearm needed beyond what's
		// already set.
		return nil
	}

	// RTT sample is timed from the largest_acknowledged packet, taken
	// only if that packet was itself newly acked here and either it or
	// any other newly-acked packet was ack-eliciting — a pure-ACK-only
	// newly-acked set says nothing trustworthy about the peer's
	// ack_delay accounting.
	largest := acked[len(acked)-1]
	anyAckEliciting := largest.AckElicitingFlag
	if !anyAckEliciting {
		for _, p := range acked {
			if p.AckElicitingFlag {
				anyAckEliciting = true
				break
			}
		}
	}
	if largest.PacketNumber == ack.LargestAcked && anyAckEliciting {
		sample := rcvTime.Sub(largest.SendTime)
		h.rttStats.UpdateRTT(sample, ack.DelayTime)
		if h.tracer != nil {
			h.tracer.UpdatedMetrics(h.metricsLocked())
		}
	}

	if ack.HasECN() && h.congestion != nil {
		s.ect0, s.ect1, s.ce = ack.ECN.ECT0, ack.ECN.ECT1, ack.ECN.CE
		h.congestion.ProcessECN(
			congestion.Packet{PacketNumber: largest.PacketNumber, SentBytes: largest.SentBytes, SendTime: largest.SendTime},
			congestion.ECNCounts{ECT0: s.ect0, ECT1: s.ect1, CE: s.ce},
		)
	}

	// A fresh ACK resets backoff: the peer is clearly still receiving.
	h.ptoCount = 0
	h.rttStats.SetPTOCount(0)
	h.rttStats.SetCryptoCount(0)

	if err := h.detectLostPacketsLocked(rcvTime, space); err != nil {
		return err
	}
	h.setLossDetectionTimerLocked()
	return nil
}

// detectAndRemoveAckedPacketsLocked expands ack's ranges per
// wire.AckFrame.Ranges and removes every packet they cover that is
// still outstanding, notifying the congestion controller and every
// acked packet's frame reactors. It returns the removed packets in
// ascending packet-number order.
func (h *Handler) detectAndRemoveAckedPacketsLocked(ack *wire.AckFrame, space protocol.PacketNumberSpace) ([]*Packet, error) {
	s := h.space(space)
	ranges := ack.Ranges()

	var acked []*Packet
	// ranges is descending; walk it back to front to visit packet
	// numbers in ascending order, matching the registry's iteration
	// order and keeping `acked` sorted for the RTT-sample check above.
	for i := len(ranges) - 1; i >= 0; i-- {
		r := ranges[i]
		for pn := r.Smallest; pn <= r.Largest; pn++ {
			p := s.registry.Get(pn)
			if p == nil {
				continue
			}
			acked = append(acked, p)
			h.onPacketAckedLocked(p)
			s.registry.Remove(pn)
		}
	}
	return acked, nil
}

func (h *Handler) onPacketAckedLocked(p *Packet) {
	h.removeFromBytesInFlightLocked(p)
	if h.congestion != nil {
		h.congestion.OnPacketAcked(congestion.Packet{
			PacketNumber: p.PacketNumber,
			SentBytes:    p.SentBytes,
			SendTime:     p.SendTime,
		})
	}
	for _, f := range p.Frames {
		if f.Reactor != nil {
			f.Reactor.OnFrameAcked(f.ID)
		}
	}
	if h.tracer != nil {
		h.tracer.AcknowledgedPacket(p.Space, p.PacketNumber)
	}
}

func (h *Handler) metricsLocked() logging.Metrics {
	return logging.Metrics{
		SmoothedRTT:      h.rttStats.SmoothedRTT(),
		MinRTT:           h.rttStats.MinRTT(),
		LatestRTT:        h.rttStats.LatestRTT(),
		RTTVariance:      h.rttStats.MeanDeviation(),
		BytesInFlight:    h.bytesInFlight,
		PacketsInFlight:  h.packetsInFlightLocked(),
		CongestionWindow: h.congestionWindowLocked(),
	}
}

func (h *Handler) packetsInFlightLocked() int {
	n := 0
	for _, s := range h.spaces {
		n += s.registry.Len()
	}
	return n
}

func (h *Handler) congestionWindowLocked() protocol.ByteCount {
	if h.congestion == nil {
		return 0
	}
	return h.congestion.GetCongestionWindow()
}
