package ackhandler

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/quictools/recovery/internal/congestion"
	"github.com/quictools/recovery/internal/protocol"
	"github.com/quictools/recovery/internal/utils"
	"github.com/quictools/recovery/internal/wire"
)

// recordingPinger and recordingPadder stand in for the probe
// collaborators the Timer Scheduler calls into for PTO and
// anti-deadlock probes.
type recordingPinger struct{ requests []protocol.EncryptionLevel }

func (p *recordingPinger) Request(level protocol.EncryptionLevel) {
	p.requests = append(p.requests, level)
}

type recordingPadder struct{ requests []protocol.EncryptionLevel }

func (p *recordingPadder) Request(level protocol.EncryptionLevel) {
	p.requests = append(p.requests, level)
}

func newTestHandler(perspective protocol.Perspective) (*Handler, *recordingPinger, *recordingPadder) {
	pinger := &recordingPinger{}
	padder := &recordingPadder{}
	cfg := DefaultConfig()
	h := NewHandler(perspective, cfg, congestion.NewAdditiveIncrease(1200), nil, pinger, padder, nil, utils.NoopLogger{})
	return h, pinger, padder
}

func singleAck(pn protocol.PacketNumber, delay time.Duration) *wire.AckFrame {
	return &wire.AckFrame{LargestAcked: pn, DelayTime: delay, FirstAckBlock: 0}
}

var _ = Describe("Handler", func() {
	var h *Handler

	BeforeEach(func() {
		h, _, _ = newTestHandler(protocol.PerspectiveClient)
	})

	It("takes a first RTT sample from the first ACK", func() {
		// A server: a client still lacking 1-RTT keys keeps the crypto
		// alarm armed even with nothing outstanding.
		h, _, _ = newTestHandler(protocol.PerspectiveServer)
		t0 := time.Unix(0, 0)
		h.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceInitial,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})

		err := h.ReceivedAck(singleAck(1, 0), protocol.PacketNumberSpaceInitial, t0.Add(100*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		Expect(h.rttStats.LatestRTT()).To(Equal(100 * time.Millisecond))
		Expect(h.rttStats.SmoothedRTT()).To(Equal(100 * time.Millisecond))
		Expect(h.rttStats.MeanDeviation()).To(Equal(50 * time.Millisecond))
		Expect(h.rttStats.MinRTT()).To(Equal(time.Duration(0)))
		Expect(h.PacketsInFlight()).To(Equal(0))
		Expect(h.GetLossDetectionTimeout()).To(BeZero())
	})

	It("declares packets lost by the reordering (packet) threshold", func() {
		t0 := time.Unix(0, 0)
		for i := protocol.PacketNumber(1); i <= 5; i++ {
			h.SentPacket(&Packet{
				PacketNumber: i, Space: protocol.PacketNumberSpaceApplicationData,
				SendTime: t0.Add(time.Duration(i) * time.Millisecond),
				SentBytes: 100, AckElicitingFlag: true, InFlight: true,
			})
		}

		var lostIDs []interface{}
		reactor := reactorFunc{onLost: func(id interface{}) { lostIDs = append(lostIDs, id) }}
		h.mu.Lock()
		h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(1).Frames = []Frame{{ID: 1, Reactor: reactor}}
		h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(2).Frames = []Frame{{ID: 2, Reactor: reactor}}
		h.mu.Unlock()

		err := h.ReceivedAck(singleAck(5, 0), protocol.PacketNumberSpaceApplicationData, t0.Add(50*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		Expect(lostIDs).To(ConsistOf(1, 2))
		h.mu.Lock()
		defer h.mu.Unlock()
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(1)).To(BeNil())
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(2)).To(BeNil())
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(3)).NotTo(BeNil())
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(4)).NotTo(BeNil())
	})

	It("declares packets lost by the time threshold, flooring the delay at granularity via max not min", func() {
		t0 := time.Unix(0, 0)
		h.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})
		h.SentPacket(&Packet{
			PacketNumber: 2, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0.Add(100 * time.Millisecond), SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})
		h.SentPacket(&Packet{
			PacketNumber: 3, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0.Add(100 * time.Millisecond), SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})

		// Seed smoothedRTT = 100ms via an unrelated first sample, exactly
		// as scenario 1 does.
		h.rttStats.UpdateRTT(100*time.Millisecond, 0)

		// The ACK for #3 adds another 100ms sample, so loss_delay is
		// 9/8 * 100ms = 112.5ms: anything sent before t0+87.5ms is lost.
		err := h.ReceivedAck(singleAck(3, 0), protocol.PacketNumberSpaceApplicationData, t0.Add(200*time.Millisecond))
		Expect(err).NotTo(HaveOccurred())

		h.mu.Lock()
		defer h.mu.Unlock()
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(1)).To(BeNil())
		// #2 is only 100ms old; a min clamp would shrink loss_delay to the
		// 1ms granularity and declare it lost as well.
		Expect(h.space(protocol.PacketNumberSpaceApplicationData).registry.Get(2)).NotTo(BeNil())
	})

	It("rejects an ACK for a packet number never sent in that space", func() {
		err := h.ReceivedAck(singleAck(5, 0), protocol.PacketNumberSpaceInitial, time.Now())
		Expect(err).To(HaveOccurred())
	})

	It("resets pto_count and crypto_count once an ACK newly acknowledges a packet", func() {
		h.mu.Lock()
		h.ptoCount = 3
		h.rttStats.SetPTOCount(3)
		h.rttStats.SetCryptoCount(2)
		h.mu.Unlock()

		t0 := time.Unix(0, 0)
		h.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceHandshake,
			SendTime: t0, SentBytes: 50, AckElicitingFlag: true, InFlight: true,
		})
		Expect(h.ReceivedAck(singleAck(1, 0), protocol.PacketNumberSpaceHandshake, t0.Add(10*time.Millisecond))).To(Succeed())

		Expect(h.rttStats.PTOCount()).To(Equal(uint32(0)))
		Expect(h.rttStats.CryptoCount()).To(Equal(uint32(0)))
	})

	It("forwards ECN counts to the congestion controller exactly once per ACK", func() {
		cc := &countingECN{}
		h.congestion = cc
		t0 := time.Unix(0, 0)
		h.SentPacket(&Packet{
			PacketNumber: 10, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})
		ack := singleAck(10, 0)
		ack.ECN = &wire.ECNSection{ECT0: 5, ECT1: 0, CE: 1}

		Expect(h.ReceivedAck(ack, protocol.PacketNumberSpaceApplicationData, t0.Add(5*time.Millisecond))).To(Succeed())
		Expect(cc.calls).To(Equal(1))
		Expect(cc.lastPN).To(Equal(protocol.PacketNumber(10)))
	})

	It("requests a padded Initial probe for a client stuck without 1-RTT keys", func() {
		client, _, padder := newTestHandler(protocol.PerspectiveClient)
		client.cfg.TimerTick = time.Millisecond
		t0 := time.Now()
		client.SentPacket(&Packet{
			PacketNumber: 0, Space: protocol.PacketNumberSpaceInitial,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: false, InFlight: true,
		})

		Expect(client.OnLossDetectionTimeout()).To(Succeed())
		Expect(padder.requests).To(ContainElement(protocol.EncryptionInitial))
	})

	It("doubles the PTO period on a second consecutive fire instead of quadrupling it", func() {
		server, _, _ := newTestHandler(protocol.PerspectiveServer)
		server.SetHandshakeConfirmed()
		server.ReceivedPacket(protocol.EncryptionHandshake)
		t0 := time.Now()
		server.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, InFlight: true,
		})

		Expect(server.OnLossDetectionTimeout()).To(Succeed())
		Expect(server.rttStats.PTOCount()).To(Equal(uint32(1)))
		firstPeriod := server.GetLossDetectionTimeout().Sub(t0)

		Expect(server.OnLossDetectionTimeout()).To(Succeed())
		Expect(server.rttStats.PTOCount()).To(Equal(uint32(2)))
		secondPeriod := server.GetLossDetectionTimeout().Sub(t0)

		Expect(secondPeriod).To(Equal(2 * firstPeriod))
	})

	It("retransmits every outstanding CRYPTO packet in every space as one batch when the crypto-retransmission alarm fires", func() {
		server, _, _ := newTestHandler(protocol.PerspectiveServer)
		var lostIDs []interface{}
		reactor := reactorFunc{onLost: func(id interface{}) { lostIDs = append(lostIDs, id) }}
		t0 := time.Now()
		server.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceInitial,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, IsCryptoPacket: true, InFlight: true,
			Frames: []Frame{{ID: "initial-crypto", Reactor: reactor}},
		})
		server.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceHandshake,
			SendTime: t0, SentBytes: 100, AckElicitingFlag: true, IsCryptoPacket: true, InFlight: true,
			Frames: []Frame{{ID: "handshake-crypto", Reactor: reactor}},
		})

		Expect(server.OnLossDetectionTimeout()).To(Succeed())

		Expect(lostIDs).To(ConsistOf("initial-crypto", "handshake-crypto"))
		Expect(server.rttStats.CryptoCount()).To(Equal(uint32(1)))

		server.mu.Lock()
		defer server.mu.Unlock()
		Expect(server.space(protocol.PacketNumberSpaceInitial).registry.Get(1)).To(BeNil())
		Expect(server.space(protocol.PacketNumberSpaceHandshake).registry.Get(1)).To(BeNil())
	})

	It("resets crypto_count unconditionally on any ACK that newly acknowledges a packet, regardless of space", func() {
		server, _, _ := newTestHandler(protocol.PerspectiveServer)
		server.mu.Lock()
		server.rttStats.SetCryptoCount(4)
		server.mu.Unlock()

		t0 := time.Unix(0, 0)
		server.SentPacket(&Packet{
			PacketNumber: 1, Space: protocol.PacketNumberSpaceApplicationData,
			SendTime: t0, SentBytes: 50, AckElicitingFlag: true, InFlight: true,
		})
		Expect(server.ReceivedAck(singleAck(1, 0), protocol.PacketNumberSpaceApplicationData, t0.Add(10*time.Millisecond))).To(Succeed())

		Expect(server.rttStats.CryptoCount()).To(Equal(uint32(0)))
	})
})

type reactorFunc struct {
	onAcked func(interface{})
	onLost  func(interface{})
}

func (r reactorFunc) OnFrameAcked(id interface{}) {
	if r.onAcked != nil {
		r.onAcked(id)
	}
}

func (r reactorFunc) OnFrameLost(id interface{}) {
	if r.onLost != nil {
		r.onLost(id)
	}
}

type countingECN struct {
	calls  int
	lastPN protocol.PacketNumber
}

func (c *countingECN) OnPacketSent(protocol.ByteCount)                              {}
func (c *countingECN) OnPacketAcked(congestion.Packet)                              {}
func (c *countingECN) OnPacketsLost(map[protocol.PacketNumber]congestion.Packet)     {}
func (c *countingECN) AddExtraCredit()                                              {}
func (c *countingECN) CanSend(protocol.ByteCount) bool                              { return true }
func (c *countingECN) GetCongestionWindow() protocol.ByteCount                      { return 12000 }
func (c *countingECN) ProcessECN(largest congestion.Packet, ecn congestion.ECNCounts) {
	c.calls++
	c.lastPN = largest.PacketNumber
}
