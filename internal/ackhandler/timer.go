package ackhandler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quictools/recovery/internal/protocol"
	"github.com/quictools/recovery/logging"
)

// getLossTimeAndSpaceLocked returns the earliest armed space.lossTime
// across all three spaces, Initial breaking ties before Handshake
// before ApplicationData.
func (h *Handler) getLossTimeAndSpaceLocked() (time.Time, protocol.PacketNumberSpace) {
	var best time.Time
	var bestSpace protocol.PacketNumberSpace
	for i, s := range h.spaces {
		if s.lossTime.IsZero() {
			continue
		}
		if best.IsZero() || s.lossTime.Before(best) {
			best = s.lossTime
			bestSpace = protocol.PacketNumberSpace(i)
		}
	}
	return best, bestSpace
}

// clientLacksOneRTTKeysLocked reports whether this is a client that
// hasn't yet installed either 1-RTT key generation — one of the two
// conditions that arms the crypto-retransmission alarm.
func (h *Handler) clientLacksOneRTTKeysLocked() bool {
	if h.perspective != protocol.PerspectiveClient {
		return false
	}
	if h.keys == nil {
		return true
	}
	return !h.keys.IsEncryptionKeyAvailable(protocol.KeyPhaseZero) &&
		!h.keys.IsEncryptionKeyAvailable(protocol.KeyPhaseOne)
}

// cryptoRetransmitArmedLocked reports whether the crypto-retransmission
// branch should be armed: a CRYPTO packet outstanding in Initial or
// Handshake, or a client still missing 1-RTT keys.
func (h *Handler) cryptoRetransmitArmedLocked() bool {
	return h.hasOutstandingCryptoPacketsLocked() || h.clientLacksOneRTTKeysLocked()
}

// cryptoRetransmitAnchorLocked returns the time the crypto-retransmission
// deadline is measured from, and the space to report it under: the later
// of Initial/Handshake's last sent crypto packet time. The caller adds
// HandshakeRetransmitTimeout. If neither space has sent a crypto packet
// yet (the client-without-1RTT-keys-only case), the anchor is now.
func (h *Handler) cryptoRetransmitAnchorLocked() (time.Time, protocol.PacketNumberSpace) {
	var anchor time.Time
	sp := protocol.PacketNumberSpaceInitial
	for _, candidate := range [...]protocol.PacketNumberSpace{
		protocol.PacketNumberSpaceInitial,
		protocol.PacketNumberSpaceHandshake,
	} {
		t := h.space(candidate).lastCryptoPacketTime
		if t.After(anchor) {
			anchor = t
			sp = candidate
		}
	}
	if anchor.IsZero() {
		anchor = time.Now()
	}
	return anchor, sp
}

// getPTOTimeAndSpaceLocked anchors on the last ack-eliciting packet
// sent in each space (ApplicationData only once the handshake is
// confirmed), plus the current PTO period and backoff, and returns the
// earliest. ok is false if no eligible space has sent an ack-eliciting
// packet to anchor on.
func (h *Handler) getPTOTimeAndSpaceLocked() (pto time.Time, space protocol.PacketNumberSpace, ok bool) {
	for _, sp := range [...]protocol.PacketNumberSpace{
		protocol.PacketNumberSpaceInitial,
		protocol.PacketNumberSpaceHandshake,
		protocol.PacketNumberSpaceApplicationData,
	} {
		if sp == protocol.PacketNumberSpaceApplicationData && !h.handshakeConfirmed {
			continue
		}
		s := h.space(sp)
		if s.lastAckElicitingPacketTime.IsZero() {
			continue
		}
		t := s.lastAckElicitingPacketTime.Add(h.rttStats.PTO())
		if pto.IsZero() || t.Before(pto) {
			pto = t
			space = sp
		}
	}
	return pto, space, !pto.IsZero()
}

func (h *Handler) hasOutstandingCryptoPacketsLocked() bool {
	return h.spaces[protocol.PacketNumberSpaceInitial].registry.HasOutstandingCrypto() ||
		h.spaces[protocol.PacketNumberSpaceHandshake].registry.HasOutstandingCrypto()
}

// cryptoRetransmitSpaceHintLocked picks which outstanding-crypto space
// to report a crypto timer expiry under, for tracers that want a space
// even though the alarm spans Initial and Handshake together.
func (h *Handler) cryptoRetransmitSpaceHintLocked() protocol.PacketNumberSpace {
	if h.spaces[protocol.PacketNumberSpaceInitial].registry.HasOutstandingCrypto() {
		return protocol.PacketNumberSpaceInitial
	}
	return protocol.PacketNumberSpaceHandshake
}

func (h *Handler) hasOutstandingPacketsLocked() bool {
	for _, s := range h.spaces {
		if s.registry.HasOutstandingPackets() {
			return true
		}
	}
	return false
}

func (h *Handler) isAmplificationLimitedLocked() bool {
	if h.perspective != protocol.PerspectiveServer || h.peerAddressValidated {
		return false
	}
	return h.bytesSent >= h.cfg.AmplificationFactor*h.bytesReceived
}

// setLossDetectionTimerLocked is the Timer Scheduler: it arms
// loss_detection_alarm_at in strict priority order — an armed loss
// time wins outright; otherwise an amplification-limited server
// disarms; otherwise the crypto-retransmission alarm is armed if a
// CRYPTO packet is outstanding or the client still lacks 1-RTT keys;
// otherwise a connection with nothing outstanding disarms the timer;
// otherwise a PTO is armed.
func (h *Handler) setLossDetectionTimerLocked() {
	old := h.alarm

	if lossTime, space := h.getLossTimeAndSpaceLocked(); !lossTime.IsZero() {
		h.alarm = lossTime
		h.alarmUnixNano.Store(h.alarm.UnixNano())
		if h.tracer != nil && h.alarm != old {
			h.tracer.SetLossTimer(logging.TimerTypeACK, space, h.alarm)
		}
		return
	}

	if h.isAmplificationLimitedLocked() {
		h.disarmLocked(old)
		return
	}

	if h.cryptoRetransmitArmedLocked() {
		anchor, space := h.cryptoRetransmitAnchorLocked()
		h.alarm = anchor.Add(h.rttStats.HandshakeRetransmitTimeout())
		h.alarmUnixNano.Store(h.alarm.UnixNano())
		if h.tracer != nil && h.alarm != old {
			h.tracer.SetLossTimer(logging.TimerTypeCrypto, space, h.alarm)
		}
		return
	}

	if !h.hasOutstandingPacketsLocked() {
		h.disarmLocked(old)
		return
	}

	ptoTime, space, ok := h.getPTOTimeAndSpaceLocked()
	if !ok {
		h.disarmLocked(old)
		return
	}
	h.alarm = ptoTime
	h.alarmUnixNano.Store(h.alarm.UnixNano())
	if h.tracer != nil && h.alarm != old {
		h.tracer.SetLossTimer(logging.TimerTypePTO, space, h.alarm)
	}
}

func (h *Handler) disarmLocked(old time.Time) {
	h.alarm = time.Time{}
	h.alarmUnixNano.Store(0)
	if !old.IsZero() {
		h.logger.Debugf("Canceling loss detection timer.")
		if h.tracer != nil {
			h.tracer.LossTimerCanceled()
		}
	}
}

// OnLossDetectionTimeout fires when the alarm armed by
// setLossDetectionTimerLocked has expired. It re-arms the timer before
// returning in every case.
func (h *Handler) OnLossDetectionTimeout() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.setLossDetectionTimerLocked()

	if lossTime, space := h.getLossTimeAndSpaceLocked(); !lossTime.IsZero() {
		if h.tracer != nil {
			h.tracer.LossTimerExpired(logging.TimerTypeACK, space)
		}
		return h.detectLostPacketsLocked(time.Now(), space)
	}

	if h.hasOutstandingCryptoPacketsLocked() {
		if h.tracer != nil {
			h.tracer.LossTimerExpired(logging.TimerTypeCrypto, h.cryptoRetransmitSpaceHintLocked())
		}
		return h.retransmitCryptoPacketsLocked()
	}

	if h.clientLacksOneRTTKeysLocked() {
		if h.tracer != nil {
			h.tracer.LossTimerExpired(logging.TimerTypeCrypto, protocol.PacketNumberSpaceInitial)
		}
		h.numProbesToSend++
		if h.congestion != nil {
			h.congestion.AddExtraCredit()
		}
		if h.keys != nil && h.keys.IsEncryptionKeyAvailable(protocol.KeyPhaseHandshake) {
			if h.pinger != nil {
				h.pinger.Request(protocol.EncryptionHandshake)
			}
		} else if h.padder != nil {
			h.padder.Request(protocol.EncryptionInitial)
		}
		h.rttStats.SetCryptoCount(h.rttStats.CryptoCount() + 1)
		return nil
	}

	if !h.hasOutstandingPacketsLocked() {
		return errors.New("ackhandler: loss detection timeout fired with nothing outstanding")
	}

	_, space, ok := h.getPTOTimeAndSpaceLocked()
	if !ok {
		return nil
	}

	h.ptoCount++
	h.rttStats.SetPTOCount(h.ptoCount)
	if h.logger.Debug() {
		h.logger.Debugf("Loss detection alarm for %s fired in PTO mode. PTO count: %d", space, h.ptoCount)
	}
	if h.tracer != nil {
		h.tracer.LossTimerExpired(logging.TimerTypePTO, space)
		h.tracer.UpdatedPTOCount(h.ptoCount)
	}
	h.numProbesToSend += 2
	level := encryptionLevelForSpace(space)
	for i := 0; i < 2; i++ {
		if h.congestion != nil {
			h.congestion.AddExtraCredit()
		}
		if h.pinger != nil {
			h.pinger.Request(level)
		}
	}
	return nil
}

func encryptionLevelForSpace(space protocol.PacketNumberSpace) protocol.EncryptionLevel {
	switch space {
	case protocol.PacketNumberSpaceInitial:
		return protocol.EncryptionInitial
	case protocol.PacketNumberSpaceHandshake:
		return protocol.EncryptionHandshake
	default:
		return protocol.Encryption1RTT
	}
}

// Run starts the background loop that polls the loss detection alarm
// every cfg.TimerTick and fires OnLossDetectionTimeout once it has
// passed — a periodic-poll timer model, deliberately built instead of
// a one-shot per-deadline time.Timer. Run blocks until ctx is done or
// Close is called; errors from OnLossDetectionTimeout are returned
// from Run.
func (h *Handler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(h.cfg.TimerTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-h.done:
				return nil
			case now := <-ticker.C:
				alarm := time.Unix(0, h.alarmUnixNano.Load())
				if h.alarmUnixNano.Load() == 0 || now.Before(alarm) {
					continue
				}
				if err := h.OnLossDetectionTimeout(); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}
