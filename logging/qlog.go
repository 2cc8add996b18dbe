package logging

import (
	"io"
	"sync"
	"time"

	"github.com/francoispqt/gojay"

	"github.com/quictools/recovery/internal/protocol"
)

// QlogWriter is a ConnectionTracer that renders every event as one
// gojay-encoded JSON object per line. It is not full qlog-draft
// schema compliance — it exists to give the
// core's observability hooks somewhere fast to go without reaching for
// reflection-based encoding/json on a per-ACK hot path, matching how
// the quic-go family this module descends from used gojay for its
// qlog writer.
type QlogWriter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *gojay.Encoder
}

// NewQlogWriter wraps w, encoding one event object per line.
func NewQlogWriter(w io.Writer) *QlogWriter {
	return &QlogWriter{w: w, enc: gojay.NewEncoder(w)}
}

var _ ConnectionTracer = &QlogWriter{}

type qlogEvent struct {
	name string
	ts   time.Time
	body gojay.MarshalerJSONObject
}

func (e qlogEvent) IsNil() bool { return false }

func (e qlogEvent) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("name", e.name)
	enc.Int64Key("time_us", e.ts.UnixMicro())
	if e.body != nil {
		enc.ObjectKey("data", e.body)
	}
}

func (q *QlogWriter) emit(name string, body gojay.MarshalerJSONObject) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_ = q.enc.EncodeObject(qlogEvent{name: name, ts: time.Now(), body: body})
	_, _ = q.w.Write([]byte{'\n'})
}

type lossTimerSetBody struct {
	TimerType string
	Space     string
	DeadlineUs int64
}

func (b lossTimerSetBody) IsNil() bool { return false }

func (b lossTimerSetBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("timer_type", b.TimerType)
	enc.StringKey("packet_number_space", b.Space)
	enc.Int64Key("deadline_us", b.DeadlineUs)
}

// SetLossTimer implements ConnectionTracer.
func (q *QlogWriter) SetLossTimer(timerType TimerType, space protocol.PacketNumberSpace, deadline time.Time) {
	q.emit("recovery:loss_timer_updated", lossTimerSetBody{
		TimerType:  timerType.String(),
		Space:      space.String(),
		DeadlineUs: deadline.UnixMicro(),
	})
}

// LossTimerCanceled implements ConnectionTracer.
func (q *QlogWriter) LossTimerCanceled() {
	q.emit("recovery:loss_timer_updated", nil)
}

type lossTimerExpiredBody struct {
	TimerType string
	Space     string
}

func (b lossTimerExpiredBody) IsNil() bool { return false }

func (b lossTimerExpiredBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("timer_type", b.TimerType)
	enc.StringKey("packet_number_space", b.Space)
}

// LossTimerExpired implements ConnectionTracer.
func (q *QlogWriter) LossTimerExpired(timerType TimerType, space protocol.PacketNumberSpace) {
	q.emit("recovery:loss_timer_expired", lossTimerExpiredBody{
		TimerType: timerType.String(),
		Space:     space.String(),
	})
}

type ptoCountBody struct{ Count uint32 }

func (b ptoCountBody) IsNil() bool { return false }
func (b ptoCountBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint32Key("pto_count", b.Count)
}

// UpdatedPTOCount implements ConnectionTracer.
func (q *QlogWriter) UpdatedPTOCount(count uint32) {
	q.emit("recovery:metrics_updated", ptoCountBody{Count: count})
}

type metricsBody struct{ m Metrics }

func (b metricsBody) IsNil() bool { return false }

func (b metricsBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("smoothed_rtt_us", b.m.SmoothedRTT.Microseconds())
	enc.Int64Key("min_rtt_us", b.m.MinRTT.Microseconds())
	enc.Int64Key("latest_rtt_us", b.m.LatestRTT.Microseconds())
	enc.Int64Key("rtt_variance_us", b.m.RTTVariance.Microseconds())
	enc.Int64Key("congestion_window", int64(b.m.CongestionWindow))
	enc.Int64Key("bytes_in_flight", int64(b.m.BytesInFlight))
	enc.IntKey("packets_in_flight", b.m.PacketsInFlight)
}

// UpdatedMetrics implements ConnectionTracer.
func (q *QlogWriter) UpdatedMetrics(m Metrics) {
	q.emit("recovery:metrics_updated", metricsBody{m: m})
}

type ackedBody struct {
	Space string
	PN    int64
}

func (b ackedBody) IsNil() bool { return false }
func (b ackedBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("packet_number_space", b.Space)
	enc.Int64Key("packet_number", b.PN)
}

// AcknowledgedPacket implements ConnectionTracer.
func (q *QlogWriter) AcknowledgedPacket(space protocol.PacketNumberSpace, pn protocol.PacketNumber) {
	q.emit("recovery:packet_acked", ackedBody{Space: space.String(), PN: int64(pn)})
}

type lostBody struct{ e PacketLostEvent }

func (b lostBody) IsNil() bool { return false }

func (b lostBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("packet_number_space", b.e.Space.String())
	enc.Int64Key("packet_number", int64(b.e.PacketNumber))
	enc.StringKey("packet_type", b.e.PacketType.String())
	enc.StringKey("trigger", b.e.Reason.String())
}

// LostPacket implements ConnectionTracer.
func (q *QlogWriter) LostPacket(event PacketLostEvent) {
	q.emit("recovery:packet_lost", lostBody{e: event})
}

type ecnBody struct{ result string }

func (b ecnBody) IsNil() bool { return false }
func (b ecnBody) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("result", b.result)
}

// ValidatedECN implements ConnectionTracer.
func (q *QlogWriter) ValidatedECN(result ECNValidationResult) {
	q.emit("recovery:ecn_state_updated", ecnBody{result: result.String()})
}
