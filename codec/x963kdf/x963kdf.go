// Package x963kdf implements the ANSI X9.63 concatenation key derivation
// function over SHA-256, used by the message codec (C4) to turn an ECDH
// shared secret into a symmetric AEAD key. No Go library in the reference
// corpus wraps this specific construction (it's a handful of lines), so
// it stays on the standard library hash primitive rather than reaching
// for an unrelated KDF package — see DESIGN.md.
package x963kdf

import (
	"crypto/sha256"
	"encoding/binary"
)

// Derive produces length bytes of key material from secret and sharedInfo,
// following X9.63: for each 32-byte block i (1-indexed), hash(secret ‖
// be32(i) ‖ sharedInfo), concatenated and truncated to length.
func Derive(secret, sharedInfo []byte, length int) []byte {
	out := make([]byte, 0, length)
	var counter uint32 = 1
	for len(out) < length {
		h := sha256.New()
		h.Write(secret)
		var counterBytes [4]byte
		binary.BigEndian.PutUint32(counterBytes[:], counter)
		h.Write(counterBytes[:])
		h.Write(sharedInfo)
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:length]
}
