package handshake

import (
	"github.com/quictools/recovery/internal/protocol"

	qtls "github.com/marten-seemann/qtls-go1-16"
)

// RecordLayerAdapter wraps a qtls.RecordLayer so that key installation
// — the part of the handshake this module's KeyInfo query cares about —
// is mirrored into a KeyStore. Every other record-layer responsibility
// (reading/writing the handshake byte stream, sending alerts) is
// delegated unchanged to the wrapped implementation; this adapter adds
// no behavior there, it only observes SetReadKey/SetWriteKey.
type RecordLayerAdapter struct {
	qtls.RecordLayer

	Keys *KeyStore
}

// NewRecordLayerAdapter wraps an existing RecordLayer, forwarding key
// installation events to store.
func NewRecordLayerAdapter(underlying qtls.RecordLayer, store *KeyStore) *RecordLayerAdapter {
	return &RecordLayerAdapter{RecordLayer: underlying, Keys: store}
}

func keyPhaseForLevel(level qtls.EncryptionLevel) protocol.KeyPhase {
	switch level {
	case qtls.EncryptionHandshake:
		return protocol.KeyPhaseHandshake
	default:
		// EncryptionApplication (1-RTT) and EncryptionEarlyData (0-RTT)
		// both count toward "1-RTT keys" for the anti-deadlock check;
		// qtls never calls SetReadKey/SetWriteKey for EncryptionInitial
		// (those keys are derived deterministically, not negotiated).
		return protocol.KeyPhaseZero
	}
}

// SetReadKey installs a decryption key at the given level, then
// records it as available before delegating to the wrapped layer.
func (a *RecordLayerAdapter) SetReadKey(level qtls.EncryptionLevel, suite *qtls.CipherSuiteTLS13, trafficSecret []byte) {
	a.Keys.MarkDecryptionKeyAvailable(keyPhaseForLevel(level))
	a.RecordLayer.SetReadKey(level, suite, trafficSecret)
}

// SetWriteKey installs an encryption key at the given level, then
// records it as available before delegating to the wrapped layer.
func (a *RecordLayerAdapter) SetWriteKey(level qtls.EncryptionLevel, suite *qtls.CipherSuiteTLS13, trafficSecret []byte) {
	a.Keys.MarkEncryptionKeyAvailable(keyPhaseForLevel(level))
	a.RecordLayer.SetWriteKey(level, suite, trafficSecret)
}

var _ qtls.RecordLayer = &RecordLayerAdapter{}
