// Package identity implements the cryptographic identity layer (C1):
// secp256k1 keypair generation, deterministic signing, strict-canonical
// verification, and the compressed public-key encoding every other
// Hyperborea component identifies participants by.
package identity

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PublicKeySize is the length, in bytes, of a compressed secp256k1 point.
const PublicKeySize = 33

// SignatureSize is the length, in bytes, of a fixed r‖s ECDSA signature.
const SignatureSize = 64

// PublicKey is a 33-byte compressed secp256k1 point. Identity equality is
// equality of this encoding.
type PublicKey [PublicKeySize]byte

// Signature is a fixed 64-byte r‖s serialization of a secp256k1 ECDSA
// signature over SHA-256(message).
type Signature [SignatureSize]byte

// KeyPair holds a secp256k1 private key and its derived public key.
type KeyPair struct {
	priv *secp256k1.PrivateKey
	pub  PublicKey
}

// Generate creates a new random secp256k1 keypair.
func Generate() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return fromPrivateKey(priv), nil
}

// FromPrivateKeyBytes reconstructs a KeyPair from a 32-byte scalar, e.g.
// when loading an identity previously persisted by the CLI helper.
func FromPrivateKeyBytes(b []byte) (*KeyPair, error) {
	priv := secp256k1.PrivKeyFromBytes(b)
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv *secp256k1.PrivateKey) *KeyPair {
	var pk PublicKey
	copy(pk[:], priv.PubKey().SerializeCompressed())
	return &KeyPair{priv: priv, pub: pk}
}

// PublicKey returns the keypair's compressed public key.
func (kp *KeyPair) PublicKey() PublicKey { return kp.pub }

// PrivateKeyBytes returns the 32-byte scalar, for persistence only.
func (kp *KeyPair) PrivateKeyBytes() []byte {
	return kp.priv.Serialize()
}

// ECDH returns the x-coordinate based shared secret with peer's public
// key, used by the message codec (C4) to derive per-channel AEAD keys.
func (kp *KeyPair) ECDH(peer PublicKey) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(peer[:])
	if err != nil {
		return nil, err
	}
	var result secp256k1.JacobianPoint
	pub.AsJacobian(&result)
	secp256k1.ScalarMultNonConst(&kp.priv.Key, &result, &result)
	result.ToAffine()
	shared := secp256k1.NewPublicKey(&result.X, &result.Y)
	return shared.SerializeCompressed()[1:], nil
}

// Sign signs message with the keypair's private key, per §4.1: SHA-256 of
// message, RFC 6979 deterministic nonce, fixed 64-byte r‖s serialization.
func (kp *KeyPair) Sign(message []byte) Signature {
	hash := sha256.Sum256(message)
	sig := ecdsa.SignCompact(kp.priv, hash[:], false)
	// SignCompact returns a 65-byte [recovery-id || r || s] value; the
	// protocol's fixed signature form is the 64-byte r‖s tail.
	var out Signature
	copy(out[:], sig[1:])
	return out
}

// Verify checks sig over message under pubkey, rejecting non-canonical
// (high-S) signatures per §4.1.
func Verify(sig Signature, message []byte, pubkey PublicKey) bool {
	pub, err := secp256k1.ParsePubKey(pubkey[:])
	if err != nil {
		return false
	}

	var rScalar, sScalar secp256k1.ModNScalar
	if rScalar.SetByteSlice(sig[:32]) || sScalar.SetByteSlice(sig[32:]) {
		return false
	}
	if sScalar.IsOverHalfOrder() {
		// strict: reject malleable (high-S) signatures.
		return false
	}

	ecdsaSig := ecdsa.NewSignature(&rScalar, &sScalar)
	hash := sha256.Sum256(message)
	return ecdsaSig.Verify(hash[:], pub)
}
