// Package qerr defines the connection-level error values the loss
// detection core can return. It does not attempt to model the full
// QUIC transport error space; only the codes this core can itself
// detect are defined here.
package qerr

import "fmt"

// ErrorCode is a QUIC transport error code.
type ErrorCode uint64

const (
	// ProtocolViolation is returned when a peer's ACK frame
	// references state that couldn't have existed, e.g. it
	// acknowledges a packet number never sent in that space.
	ProtocolViolation ErrorCode = 0xa
)

// TransportError is a connection-level error produced by the core.
// The caller decides whether and how to close the connection; the
// core itself never closes anything and never mutates state when
// returning one of these from an operation.
type TransportError struct {
	ErrorCode    ErrorCode
	ErrorMessage string
}

func (e *TransportError) Error() string {
	if e.ErrorMessage == "" {
		return fmt.Sprintf("transport error %#x", uint64(e.ErrorCode))
	}
	return fmt.Sprintf("transport error %#x: %s", uint64(e.ErrorCode), e.ErrorMessage)
}
