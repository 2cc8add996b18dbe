package ackhandler

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/quictools/recovery/internal/protocol"
)

var _ = Describe("registry", func() {
	var r *registry

	BeforeEach(func() {
		r = newRegistry()
	})

	It("rejects out-of-order insertion", func() {
		r.Insert(&Packet{PacketNumber: 5})
		Expect(func() { r.Insert(&Packet{PacketNumber: 3}) }).To(Panic())
	})

	It("iterates in ascending packet-number order", func() {
		r.Insert(&Packet{PacketNumber: 1})
		r.Insert(&Packet{PacketNumber: 2})
		r.Insert(&Packet{PacketNumber: 3})

		var seen []protocol.PacketNumber
		Expect(r.Iterate(func(p *Packet) (bool, error) {
			seen = append(seen, p.PacketNumber)
			return true, nil
		})).To(Succeed())
		Expect(seen).To(Equal([]protocol.PacketNumber{1, 2, 3}))
	})

	It("stops early without visiting the remainder", func() {
		r.Insert(&Packet{PacketNumber: 1})
		r.Insert(&Packet{PacketNumber: 2})
		r.Insert(&Packet{PacketNumber: 3})

		var seen int
		Expect(r.Iterate(func(p *Packet) (bool, error) {
			seen++
			return p.PacketNumber < 2, nil
		})).To(Succeed())
		Expect(seen).To(Equal(2))
	})

	It("tracks ack-eliciting and crypto counters across insert and remove", func() {
		r.Insert(&Packet{PacketNumber: 1, AckElicitingFlag: true, IsCryptoPacket: true})
		r.Insert(&Packet{PacketNumber: 2, AckElicitingFlag: false})
		Expect(r.HasOutstandingPackets()).To(BeTrue())
		Expect(r.HasOutstandingCrypto()).To(BeTrue())

		r.Remove(1)
		Expect(r.HasOutstandingPackets()).To(BeFalse())
		Expect(r.HasOutstandingCrypto()).To(BeFalse())
		Expect(r.Len()).To(Equal(1))
	})

	It("reports the lowest outstanding packet", func() {
		Expect(r.FirstOutstanding()).To(BeNil())
		r.Insert(&Packet{PacketNumber: 4, SendTime: time.Now()})
		r.Insert(&Packet{PacketNumber: 7})
		Expect(r.FirstOutstanding().PacketNumber).To(Equal(protocol.PacketNumber(4)))
	})

	It("Get returns nil for a packet number never inserted or already removed", func() {
		Expect(r.Get(1)).To(BeNil())
		r.Insert(&Packet{PacketNumber: 1})
		r.Remove(1)
		Expect(r.Get(1)).To(BeNil())
	})
})
