// Package codec implements the message codec pipeline (C4): compression,
// then authenticated encryption, then text encoding, applied to a
// Message's plaintext content. Decoding reverses the pipeline.
package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/hyperborea-net/hyperborea/protoerr"
)

// Compression names a compression algorithm token.
type Compression string

const (
	CompressionNone    Compression = ""
	CompressionDeflate Compression = "deflate"
	CompressionBrotli  Compression = "brotli"
)

// Cipher names an AEAD cipher token.
type Cipher string

const (
	CipherNone             Cipher = ""
	CipherAES256GCM        Cipher = "aes256-gcm"
	CipherChaCha20Poly1305 Cipher = "chacha20-poly1305"
)

// Pipeline is a parsed encoding descriptor, per the §4.4 grammar:
// base64 | base64/<compression> | base64/<encryption> |
// base64/<encryption>/<compression>.
type Pipeline struct {
	Cipher      Cipher
	Compression Compression
}

// String renders the pipeline back to its descriptor form.
func (p Pipeline) String() string {
	parts := []string{"base64"}
	if p.Cipher != CipherNone {
		parts = append(parts, string(p.Cipher))
	}
	if p.Compression != CompressionNone {
		parts = append(parts, string(p.Compression))
	}
	return strings.Join(parts, "/")
}

// Parse decodes an encoding descriptor string into a Pipeline.
func Parse(descriptor string) (Pipeline, error) {
	parts := strings.Split(descriptor, "/")
	if len(parts) == 0 || parts[0] != "base64" {
		return Pipeline{}, protoerr.New(protoerr.KindSchema, "encoding must start with base64")
	}
	var p Pipeline
	for _, tok := range parts[1:] {
		switch Cipher(tok) {
		case CipherAES256GCM, CipherChaCha20Poly1305:
			if p.Cipher != CipherNone {
				return Pipeline{}, protoerr.New(protoerr.KindSchema, "duplicate cipher token")
			}
			p.Cipher = Cipher(tok)
			continue
		}
		switch Compression(tok) {
		case CompressionDeflate, CompressionBrotli:
			if p.Compression != CompressionNone {
				return Pipeline{}, protoerr.New(protoerr.KindSchema, "duplicate compression token")
			}
			p.Compression = Compression(tok)
			continue
		}
		return Pipeline{}, protoerr.New(protoerr.KindSchema, fmt.Sprintf("unrecognized pipeline token %q", tok))
	}
	return p, nil
}

// KeyMaterial is the per-message cryptographic context derived from the
// sender/receiver identities, the channel, and a message seed. The seed
// is whatever the caller supplies: client.Send draws a fresh one for each
// message and carries it in the send payload's seed field, so it is not
// the proof seed of the request envelope that carries the message.
type KeyMaterial struct {
	SharedSecret []byte // ECDH output between sender and receiver
	SenderPub    [33]byte
	ReceiverPub  [33]byte
	Channel      string
	Seed         uint64
}

// nonce derives the 12-byte AEAD nonce: the first 12 bytes of
// SHA-256(sender_pubkey ‖ receiver_pubkey ‖ channel ‖ seed).
func (k KeyMaterial) nonce() []byte {
	h := sha256.New()
	h.Write(k.SenderPub[:])
	h.Write(k.ReceiverPub[:])
	h.Write([]byte(k.Channel))
	var seedBytes [8]byte
	binary.BigEndian.PutUint64(seedBytes[:], k.Seed)
	h.Write(seedBytes[:])
	sum := h.Sum(nil)
	return sum[:12]
}

// Default plaintext size ceiling, per §4.4: 16 MiB.
const DefaultMaxPlaintext = 16 * 1024 * 1024

// Config carries the implementation-configured plaintext size ceiling.
type Config struct {
	MaxPlaintext int
}

// DefaultConfig returns the protocol's default size ceiling.
func DefaultConfig() Config {
	return Config{MaxPlaintext: DefaultMaxPlaintext}
}

// Encode runs plaintext through compress -> encrypt -> base64, per the
// sender direction in §4.4.
func Encode(cfg Config, pipeline Pipeline, key KeyMaterial, plaintext []byte) (string, error) {
	if len(plaintext) > cfg.MaxPlaintext {
		return "", protoerr.New(protoerr.KindTooLarge, "plaintext exceeds configured size ceiling")
	}
	compressed, err := compress(pipeline.Compression, plaintext)
	if err != nil {
		return "", protoerr.Wrap(protoerr.KindInternal, "compression failed", err)
	}
	encrypted, err := encrypt(pipeline.Cipher, key, compressed)
	if err != nil {
		return "", protoerr.Wrap(protoerr.KindInternal, "encryption failed", err)
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decode reverses Encode: base64 -> decrypt -> decompress.
func Decode(cfg Config, pipeline Pipeline, key KeyMaterial, encoded string) ([]byte, error) {
	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "invalid base64 content", err)
	}
	compressed, err := decrypt(pipeline.Cipher, key, encrypted)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindIntegrity, "decryption failed", err)
	}
	plaintext, err := decompress(pipeline.Compression, compressed)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindInternal, "decompression failed", err)
	}
	if len(plaintext) > cfg.MaxPlaintext {
		return nil, protoerr.New(protoerr.KindTooLarge, "decoded plaintext exceeds configured size ceiling")
	}
	return plaintext, nil
}
