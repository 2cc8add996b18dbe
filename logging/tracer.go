package logging

import (
	"time"

	"github.com/quictools/recovery/internal/protocol"
)

// Metrics is the snapshot of estimator/registry state passed to
// UpdatedMetrics, so a tracer can render e.g. a qlog
// recovery:metrics_updated event without reaching back into the core.
type Metrics struct {
	SmoothedRTT       time.Duration
	MinRTT            time.Duration
	LatestRTT         time.Duration
	RTTVariance       time.Duration
	CongestionWindow  protocol.ByteCount
	BytesInFlight     protocol.ByteCount
	PacketsInFlight   int
}

// ConnectionTracer is the observability hook the loss detection core
// calls into. Every method may be called with a nil receiver check
// skipped by the core (a nil ConnectionTracer is legal and every call
// site guards for it.
type ConnectionTracer interface {
	// SetLossTimer reports that the loss-detection alarm was (re)armed.
	SetLossTimer(timerType TimerType, space protocol.PacketNumberSpace, deadline time.Time)
	// LossTimerCanceled reports that the alarm was disarmed.
	LossTimerCanceled()
	// LossTimerExpired reports that the alarm fired.
	LossTimerExpired(timerType TimerType, space protocol.PacketNumberSpace)
	// UpdatedPTOCount reports a new PTO backoff count.
	UpdatedPTOCount(count uint32)
	// UpdatedMetrics reports a fresh RTT/congestion/in-flight snapshot.
	UpdatedMetrics(m Metrics)
	// AcknowledgedPacket reports that a single packet was acknowledged.
	AcknowledgedPacket(space protocol.PacketNumberSpace, pn protocol.PacketNumber)
	// LostPacket reports that a packet was declared lost.
	LostPacket(event PacketLostEvent)
	// ValidatedECN reports the outcome of ECN validation.
	ValidatedECN(result ECNValidationResult)
}
