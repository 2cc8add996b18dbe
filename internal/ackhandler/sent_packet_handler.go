package ackhandler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quictools/recovery/internal/congestion"
	"github.com/quictools/recovery/internal/handshake"
	"github.com/quictools/recovery/internal/protocol"
	"github.com/quictools/recovery/internal/utils"
	"github.com/quictools/recovery/logging"
)

// Handler is the top-level orchestrator: the Sent-Packet Registry,
// ACK Processor, Loss Detector, and Timer Scheduler for all three
// packet-number spaces of one connection, behind a single mutex.
// Everything upstream of it (framing, transmission, the handshake
// itself) is out of scope.
type Handler struct {
	mu sync.Mutex

	cfg         Config
	perspective protocol.Perspective

	spaces [protocol.NumPacketNumberSpaces]*packetNumberSpace

	rttStats   *utils.RTTStats
	congestion congestion.SendAlgorithm
	keys       handshake.KeyInfo
	pinger     Pinger
	padder     Padder
	tracer     logging.ConnectionTracer
	logger     utils.Logger

	ackDelayExponent uint8

	bytesInFlight protocol.ByteCount
	bytesSent     protocol.ByteCount
	bytesReceived protocol.ByteCount

	// peerCompletedAddressValidation is always true for the server.
	peerCompletedAddressValidation bool
	// peerAddressValidated is always true for the client. The server
	// sets it once it processes a Handshake-level packet (see
	// ReceivedPacket); until then it is amplification-limited.
	peerAddressValidated bool
	handshakeConfirmed   bool

	alarm           time.Time
	ptoCount        uint32
	numProbesToSend int

	// alarmUnixNano mirrors alarm for the background poll loop to peek
	// at without taking mu on every tick; the authoritative value is
	// always alarm, read under mu in OnLossDetectionTimeout.
	alarmUnixNano atomic.Int64

	done chan struct{}
}

// NewHandler creates a Handler for one connection. perspective decides
// the address-validation defaults (see peerCompletedAddressValidation
// / peerAddressValidated above); keys, pinger, and padder may be nil.
// keys and padder are only consulted for the client's anti-deadlock
// probe; pinger is also asked for PTO probes. A nil pinger or padder
// is skipped.
func NewHandler(
	perspective protocol.Perspective,
	cfg Config,
	congestionCtrl congestion.SendAlgorithm,
	keys handshake.KeyInfo,
	pinger Pinger,
	padder Padder,
	tracer logging.ConnectionTracer,
	logger utils.Logger,
) *Handler {
	if logger == nil {
		logger = utils.NoopLogger{}
	}
	h := &Handler{
		cfg:         cfg,
		perspective: perspective,
		rttStats:    utils.NewRTTStats(cfg.Granularity, cfg.InitialRTT),
		congestion:  congestionCtrl,
		keys:        keys,
		pinger:      pinger,
		padder:      padder,
		tracer:      tracer,
		logger:      logger,
		done:        make(chan struct{}),
	}
	for i := range h.spaces {
		h.spaces[i] = newPacketNumberSpace()
	}
	if perspective == protocol.PerspectiveServer {
		h.peerCompletedAddressValidation = true
	} else {
		h.peerAddressValidated = true
	}
	return h
}

// RTTStats exposes the RTT Estimator, e.g. for a caller wanting to log
// or export current estimates.
func (h *Handler) RTTStats() *utils.RTTStats { return h.rttStats }

// SetAckDelayExponent records the peer's ack_delay_exponent transport
// parameter. The value is stored only: the ACK Processor does not read
// it, since wire.AckFrame.DelayTime arrives already scaled by the wire
// layer (out of scope here).
func (h *Handler) SetAckDelayExponent(exp uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ackDelayExponent = exp
}

// ReceivedBytes records that n bytes arrived from the peer, feeding
// the anti-amplification budget.
func (h *Handler) ReceivedBytes(n protocol.ByteCount) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bytesReceived += n
}

// ReceivedPacket marks that the server successfully processed a packet
// at or above the Handshake encryption level, which per RFC 9001
// implicitly validates the client's address.
func (h *Handler) ReceivedPacket(level protocol.EncryptionLevel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.perspective == protocol.PerspectiveServer && level >= protocol.EncryptionHandshake {
		h.peerAddressValidated = true
	}
}

func (h *Handler) space(s protocol.PacketNumberSpace) *packetNumberSpace {
	return h.spaces[s]
}

// PacketsInFlight returns the number of outstanding in-flight packets
// across all three spaces.
func (h *Handler) PacketsInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.spaces {
		n += s.registry.Len()
	}
	return n
}

// BytesInFlight returns the total bytes currently outstanding.
func (h *Handler) BytesInFlight() protocol.ByteCount {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bytesInFlight
}

// SentPacket records a newly sent packet. p.Space, p.PacketNumber, and
// p.SendTime must already be set by the caller; packet numbers within
// a space must be supplied in strictly increasing order. Version
// Negotiation packets are ignored.
func (h *Handler) SentPacket(p *Packet) {
	if p.PacketType == protocol.PacketTypeVersionNegotiation {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sentPacketLocked(p)
	h.setLossDetectionTimerLocked()
}

func (h *Handler) sentPacketLocked(p *Packet) {
	space := h.space(p.Space)
	space.largestSent = p.PacketNumber
	if p.AckElicitingFlag {
		space.lastAckElicitingPacketTime = p.SendTime
	}
	if p.IsCryptoPacket {
		space.lastCryptoPacketTime = p.SendTime
	}
	if p.InFlight {
		space.registry.Insert(p)
		h.bytesInFlight += p.SentBytes
		h.bytesSent += p.SentBytes
		if h.congestion != nil {
			h.congestion.OnPacketSent(p.SentBytes)
		}
	}
}

func (h *Handler) removeFromBytesInFlightLocked(p *Packet) {
	if !p.InFlight {
		return
	}
	if p.SentBytes > h.bytesInFlight {
		panic("ackhandler: removed more bytes than are in flight")
	}
	h.bytesInFlight -= p.SentBytes
}

// DropPackets discards all outstanding state for a packet-number
// space whose keys have been dropped (e.g. Initial keys discarded once
// the Handshake space is in use). Every still-outstanding packet's
// bytes are released from bytes_in_flight, but no loss is declared and
// the congestion controller is not notified — dropped keys are not a
// loss event.
func (h *Handler) DropPackets(space protocol.PacketNumberSpace) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.space(space)
	_ = s.registry.Iterate(func(p *Packet) (bool, error) {
		h.removeFromBytesInFlightLocked(p)
		return true, nil
	})
	h.spaces[space] = newPacketNumberSpace()
	h.setLossDetectionTimerLocked()
}

// SetHandshakeConfirmed marks the handshake confirmed, after which
// application-data probes are timed against rttStats.PTO. The
// anti-deadlock client probe does not consult this flag; it depends
// only on 1-RTT key availability.
func (h *Handler) SetHandshakeConfirmed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handshakeConfirmed = true
	h.setLossDetectionTimerLocked()
}

// SetMaxDatagramSize updates cfg.MaxDatagramSize. The
// anti-amplification check does not use it; it compares bytes sent
// against AmplificationFactor times bytes received.
func (h *Handler) SetMaxDatagramSize(s protocol.ByteCount) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.MaxDatagramSize = s
}

// GetLossDetectionTimeout returns the deadline the loss detection
// alarm is currently armed for, or the zero Time if disarmed.
func (h *Handler) GetLossDetectionTimeout() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alarm
}

// Close stops the background timer-polling loop started by Run.
func (h *Handler) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
