package ackhandler

import (
	"container/list"

	"github.com/quictools/recovery/internal/protocol"
)

// registry is the Sent-Packet Registry for a single packet-number
// space: a strictly-increasing-by-packet-number ordered set of
// outstanding packets, backed by a doubly linked list (for cheap
// ascending iteration with early break, stopping the scan once it
// passes what it needs) and a map index (for O(1) lookup by packet
// number on ACK processing).
type registry struct {
	list *list.List
	elem map[protocol.PacketNumber]*list.Element

	ackElicitingCount int
	cryptoCount       int
}

func newRegistry() *registry {
	return &registry{
		list: list.New(),
		elem: make(map[protocol.PacketNumber]*list.Element),
	}
}

// Insert records a newly sent packet. Packet numbers within a space
// must be inserted in strictly increasing order; this is a caller
// invariant (SentPacket assigns packet numbers in send order) and a
// violation is a programming error, not a peer-triggerable fault.
func (r *registry) Insert(p *Packet) {
	if back := r.list.Back(); back != nil && back.Value.(*Packet).PacketNumber >= p.PacketNumber {
		panic("ackhandler: packet numbers inserted out of order")
	}
	e := r.list.PushBack(p)
	r.elem[p.PacketNumber] = e
	if p.AckElicitingFlag {
		r.ackElicitingCount++
	}
	if p.IsCryptoPacket {
		r.cryptoCount++
	}
}

// Get returns the packet with this number, or nil if it isn't
// outstanding (never sent, already acked, or already removed as lost).
func (r *registry) Get(pn protocol.PacketNumber) *Packet {
	e, ok := r.elem[pn]
	if !ok {
		return nil
	}
	return e.Value.(*Packet)
}

// Remove drops a packet from the registry — called once it has been
// either acknowledged or declared lost.
func (r *registry) Remove(pn protocol.PacketNumber) {
	e, ok := r.elem[pn]
	if !ok {
		return
	}
	p := e.Value.(*Packet)
	if p.AckElicitingFlag {
		r.ackElicitingCount--
	}
	if p.IsCryptoPacket {
		r.cryptoCount--
	}
	r.list.Remove(e)
	delete(r.elem, pn)
}

// Iterate walks outstanding packets in ascending packet-number order,
// calling cb on each. cb returns (keepGoing, err): returning
// keepGoing=false stops the iteration early without error (used by the
// Loss Detector once it has scanned past every packet number that
// could possibly be lost), returning a non-nil err aborts the
// iteration and propagates the error to Iterate's caller.
func (r *registry) Iterate(cb func(*Packet) (bool, error)) error {
	for e := r.list.Front(); e != nil; {
		next := e.Next()
		cont, err := cb(e.Value.(*Packet))
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		e = next
	}
	return nil
}

// FirstOutstanding returns the lowest-numbered outstanding packet, or
// nil if none.
func (r *registry) FirstOutstanding() *Packet {
	e := r.list.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Packet)
}

// HasOutstandingPackets reports whether any ack-eliciting packet is
// outstanding in this space.
func (r *registry) HasOutstandingPackets() bool {
	return r.ackElicitingCount > 0
}

// HasOutstandingCrypto reports whether any CRYPTO-bearing packet is
// outstanding in this space.
func (r *registry) HasOutstandingCrypto() bool {
	return r.cryptoCount > 0
}

// Len returns the number of outstanding packets, ack-eliciting or not.
func (r *registry) Len() int {
	return r.list.Len()
}
