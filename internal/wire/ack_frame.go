// Package wire defines the minimal shape an already-parsed ACK frame
// must have to be consumed by the loss detection core. Frame parsing
// itself is out of scope for this module; this
// package exists purely as the small interface boundary the ACK
// Processor is built against.
package wire

import (
	"time"

	"github.com/quictools/recovery/internal/protocol"
)

// AckBlock is one (gap, length) pair from an ACK frame's ack block
// section, encoding a range of acknowledged packet numbers relative to
// the range before it.
type AckBlock struct {
	// Gap is the number of unacknowledged packet numbers between this
	// range and the one before it, minus one.
	Gap uint64
	// Length is the number of acknowledged packet numbers in this
	// range, minus one.
	Length uint64
}

// AckRange is one contiguous, inclusive range of acknowledged packet
// numbers.
type AckRange struct {
	Smallest protocol.PacketNumber
	Largest  protocol.PacketNumber
}

// Contains reports whether pn falls inside the range.
func (r AckRange) Contains(pn protocol.PacketNumber) bool {
	return pn >= r.Smallest && pn <= r.Largest
}

// ECNSection carries the three ECN counters an ACK frame may report.
// A nil *ECNSection means the ACK didn't include ECN counts at all.
type ECNSection struct {
	ECT0 uint64
	ECT1 uint64
	CE   uint64
}

// AckFrame is the already-decoded ACK frame the ACK Processor
// operates on. It mirrors the wire encoding directly (first_ack_block
// plus a descending sequence of gap/length blocks) rather than a
// pre-expanded range list, so that range expansion — the part of ACK
// processing this core actually owns — happens in one place (Ranges).
type AckFrame struct {
	// LargestAcked is the highest packet number this ACK acknowledges.
	LargestAcked protocol.PacketNumber
	// DelayTime is the peer-reported ack delay, already converted to a
	// time.Duration by left-shifting the wire varint (microseconds) by
	// the peer's ack_delay_exponent.
	DelayTime time.Duration
	// FirstAckBlock is the number of contiguous packets below
	// LargestAcked (inclusive) that are acknowledged, minus one.
	FirstAckBlock uint64
	// Blocks lists the remaining (gap, length) ack blocks, in the
	// order they appear on the wire: descending from LargestAcked.
	Blocks []AckBlock
	// ECN is nil unless the frame carried an ECN section.
	ECN *ECNSection
}

// Ranges expands the frame's first_ack_block/gap/length encoding into
// a descending list of inclusive [Smallest, Largest] ranges, per
// the wire encoding: start at LargestAcked, subtract FirstAckBlock
// to get the low end of the top range, then for each block subtract
// gap+1 then block.length to get the next range's bounds.
func (f *AckFrame) Ranges() []AckRange {
	ranges := make([]AckRange, 0, 1+len(f.Blocks))

	largest := f.LargestAcked
	smallest := largest - protocol.PacketNumber(f.FirstAckBlock)
	ranges = append(ranges, AckRange{Smallest: smallest, Largest: largest})

	x := smallest - 1
	for _, b := range f.Blocks {
		x -= protocol.PacketNumber(b.Gap) + 1
		blockLargest := x
		blockSmallest := blockLargest - protocol.PacketNumber(b.Length)
		ranges = append(ranges, AckRange{Smallest: blockSmallest, Largest: blockLargest})
		x = blockSmallest - 1
	}

	return ranges
}

// LowestAcked returns the smallest packet number this ACK
// acknowledges.
func (f *AckFrame) LowestAcked() protocol.PacketNumber {
	ranges := f.Ranges()
	return ranges[len(ranges)-1].Smallest
}

// HasMissingRanges reports whether the ACK has more than one
// contiguous range, i.e. whether it skips over unacknowledged packet
// numbers.
func (f *AckFrame) HasMissingRanges() bool {
	return len(f.Blocks) > 0
}

// HasECN reports whether the frame carried an ECN section.
func (f *AckFrame) HasECN() bool {
	return f.ECN != nil
}
