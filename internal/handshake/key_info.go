// Package handshake exposes the TLS key-availability query the loss
// detection core needs. The handshake itself — negotiating
// and deriving those keys — is out of scope for this module; this
// package only tracks and reports availability.
package handshake

import (
	"sync"

	"github.com/quictools/recovery/internal/protocol"
)

// KeyInfo answers whether a given key phase's encryption/decryption
// keys are currently available, for the anti-deadlock probe logic in
// the Timer Scheduler.
type KeyInfo interface {
	IsEncryptionKeyAvailable(phase protocol.KeyPhase) bool
	IsDecryptionKeyAvailable(phase protocol.KeyPhase) bool
}

// KeyStore is a mutex-guarded KeyInfo implementation. A real TLS
// handshake driver (out of scope here) flips its flags as key material
// is derived, typically through a RecordLayerAdapter.
type KeyStore struct {
	mu         sync.Mutex
	encryption map[protocol.KeyPhase]bool
	decryption map[protocol.KeyPhase]bool
}

// NewKeyStore creates an empty KeyStore: no keys available for any
// phase until marked so.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		encryption: make(map[protocol.KeyPhase]bool),
		decryption: make(map[protocol.KeyPhase]bool),
	}
}

var _ KeyInfo = &KeyStore{}

// MarkEncryptionKeyAvailable records that this phase's write key is
// now installed.
func (k *KeyStore) MarkEncryptionKeyAvailable(phase protocol.KeyPhase) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.encryption[phase] = true
}

// MarkDecryptionKeyAvailable records that this phase's read key is
// now installed.
func (k *KeyStore) MarkDecryptionKeyAvailable(phase protocol.KeyPhase) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.decryption[phase] = true
}

// IsEncryptionKeyAvailable reports whether phase's write key is
// installed.
func (k *KeyStore) IsEncryptionKeyAvailable(phase protocol.KeyPhase) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.encryption[phase]
}

// IsDecryptionKeyAvailable reports whether phase's read key is
// installed.
func (k *KeyStore) IsDecryptionKeyAvailable(phase protocol.KeyPhase) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.decryption[phase]
}
