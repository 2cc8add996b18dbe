package ackhandler

import (
	"time"

	"github.com/quictools/recovery/internal/congestion"
	"github.com/quictools/recovery/internal/protocol"
	"github.com/quictools/recovery/internal/utils"
	"github.com/quictools/recovery/logging"
)

// detectLostPacketsLocked is the Loss Detector for one packet-number
// space: it declares a packet lost if packetThreshold later packets
// have already been acknowledged (reordering), or if it was sent
// longer than lossDelay ago (time threshold); everything else still
// outstanding below largest_acked but not yet past lossDelay arms
// space.lossTime for the early-retransmit timer instead.
//
// lossDelay is floored at Granularity with max, not min: clamping with
// min would make the loss delay *shrink* to the granularity floor
// whenever the RTT-derived delay exceeds it — the opposite of a floor,
// and a bug relative to RFC 9002 §6.1.2. This implementation uses max.
func (h *Handler) detectLostPacketsLocked(now time.Time, space protocol.PacketNumberSpace) error {
	s := h.space(space)
	s.lossTime = time.Time{}

	lossDelay := time.Duration(
		int64(utils.MaxDuration(h.rttStats.LatestRTT(), h.rttStats.SmoothedRTT())) *
			h.cfg.TimeThresholdNumerator / h.cfg.TimeThresholdDenominator,
	)
	lossDelay = utils.MaxDuration(lossDelay, h.cfg.Granularity)

	lostSendTime := now.Add(-lossDelay)

	lost := make(map[protocol.PacketNumber]*Packet)
	err := s.registry.Iterate(func(p *Packet) (bool, error) {
		if p.PacketNumber > s.largestAcked {
			return false, nil
		}
		if p.declaredLost {
			return true, nil
		}

		switch {
		case p.SendTime.Before(lostSendTime):
			if h.logger.Debug() {
				h.logger.Debugf("\tlost packet %d in %s (time threshold)", p.PacketNumber, space)
			}
			lost[p.PacketNumber] = p
			if h.tracer != nil {
				h.tracer.LostPacket(logging.PacketLostEvent{
					Space: space, PacketNumber: p.PacketNumber,
					PacketType: p.PacketType, Reason: logging.PacketLossTimeThreshold,
				})
			}
		case s.largestAcked >= p.PacketNumber+h.cfg.PacketThreshold:
			if h.logger.Debug() {
				h.logger.Debugf("\tlost packet %d in %s (reordering threshold)", p.PacketNumber, space)
			}
			lost[p.PacketNumber] = p
			if h.tracer != nil {
				h.tracer.LostPacket(logging.PacketLostEvent{
					Space: space, PacketNumber: p.PacketNumber,
					PacketType: p.PacketType, Reason: logging.PacketLossReorderingThreshold,
				})
			}
		case s.lossTime.IsZero():
			s.lossTime = p.SendTime.Add(lossDelay)
			if h.logger.Debug() {
				h.logger.Debugf("\tsetting loss timer for packet %d in %s to %s", p.PacketNumber, space, s.lossTime)
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if len(lost) == 0 {
		return nil
	}

	ccPackets := make(map[protocol.PacketNumber]congestion.Packet, len(lost))
	for pn, p := range lost {
		p.declaredLost = true
		h.removeFromBytesInFlightLocked(p)
		ccPackets[pn] = congestion.Packet{PacketNumber: p.PacketNumber, SentBytes: p.SentBytes, SendTime: p.SendTime}
	}
	if h.congestion != nil {
		h.congestion.OnPacketsLost(ccPackets)
	}
	for pn, p := range lost {
		for _, f := range p.Frames {
			if f.Reactor != nil {
				f.Reactor.OnFrameLost(f.ID)
			}
		}
		s.registry.Remove(pn)
	}
	return nil
}

// retransmitCryptoPacketsLocked is the Timer Scheduler's
// crypto-retransmission fire behavior: every still-outstanding CRYPTO
// packet across all three spaces is treated as a retransmit candidate,
// dispatched through the same on_frame_lost / congestion-notification
// path as an ordinary loss, then crypto_count is bumped once for the
// whole batch.
func (h *Handler) retransmitCryptoPacketsLocked() error {
	for _, space := range [...]protocol.PacketNumberSpace{
		protocol.PacketNumberSpaceInitial,
		protocol.PacketNumberSpaceHandshake,
		protocol.PacketNumberSpaceApplicationData,
	} {
		s := h.space(space)
		var lost []*Packet
		err := s.registry.Iterate(func(p *Packet) (bool, error) {
			if p.IsCryptoPacket && !p.declaredLost {
				lost = append(lost, p)
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		if len(lost) == 0 {
			continue
		}

		ccPackets := make(map[protocol.PacketNumber]congestion.Packet, len(lost))
		for _, p := range lost {
			p.declaredLost = true
			h.removeFromBytesInFlightLocked(p)
			for _, f := range p.Frames {
				if f.Reactor != nil {
					f.Reactor.OnFrameLost(f.ID)
				}
			}
			s.registry.Remove(p.PacketNumber)
			ccPackets[p.PacketNumber] = congestion.Packet{PacketNumber: p.PacketNumber, SentBytes: p.SentBytes, SendTime: p.SendTime}
		}
		if h.congestion != nil {
			h.congestion.OnPacketsLost(ccPackets)
		}
	}
	h.rttStats.SetCryptoCount(h.rttStats.CryptoCount() + 1)
	return nil
}
