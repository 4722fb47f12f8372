// Package certificate implements connection certificates (C3): a client's
// attestation that it is bound to a particular server at a particular
// time, used by the router to decide which binding for a client is
// current.
package certificate

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/hyperborea-net/hyperborea/identity"
)

// TokenSize is the length, in bytes, of a ConnectionToken:
// 8-byte big-endian auth_date ‖ 33-byte server public key.
const TokenSize = 8 + identity.PublicKeySize

// Token is the value a client signs to attest its binding to a server.
type Token struct {
	AuthDate uint64
	Server   identity.PublicKey
}

// Bytes renders the token in its fixed 41-byte wire form.
func (t Token) Bytes() [TokenSize]byte {
	var b [TokenSize]byte
	binary.BigEndian.PutUint64(b[:8], t.AuthDate)
	copy(b[8:], t.Server[:])
	return b
}

// ParseToken reconstructs a Token from its 41-byte wire form.
func ParseToken(b []byte) (Token, bool) {
	if len(b) != TokenSize {
		return Token{}, false
	}
	var t Token
	t.AuthDate = binary.BigEndian.Uint64(b[:8])
	copy(t.Server[:], b[8:])
	return t, true
}

// tokenWire is Token's JSON shape: auth_date as a decimal string (a JSON
// number loses precision above 2^53-1, and auth_date is a full uint64)
// and server as the same "v1:<base32>" address identity.Encode renders
// everywhere else a public key crosses the wire.
type tokenWire struct {
	AuthDate string `json:"auth_date"`
	Server   string `json:"server"`
}

func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenWire{
		AuthDate: strconv.FormatUint(t.AuthDate, 10),
		Server:   identity.Encode(t.Server),
	})
}

func (t *Token) UnmarshalJSON(data []byte) error {
	var w tokenWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	authDate, err := strconv.ParseUint(w.AuthDate, 10, 64)
	if err != nil {
		return err
	}
	server, err := identity.Decode(w.Server)
	if err != nil {
		return err
	}
	t.AuthDate = authDate
	t.Server = server
	return nil
}

// Certificate attests "the holder of Sign claims to be bound to
// Token.Server at time Token.AuthDate".
type Certificate struct {
	Token Token
	Sign  identity.Signature
}

var errInvalidSignatureLength = errors.New("signature must be 64 bytes")

// certificateWire is Certificate's JSON shape: token nested as-is (its
// own MarshalJSON handles auth_date/server), sign hex-encoded the same
// way the request/response envelope encodes every other signature.
type certificateWire struct {
	Token Token  `json:"token"`
	Sign  string `json:"sign"`
}

func (c Certificate) MarshalJSON() ([]byte, error) {
	return json.Marshal(certificateWire{
		Token: c.Token,
		Sign:  hex.EncodeToString(c.Sign[:]),
	})
}

func (c *Certificate) UnmarshalJSON(data []byte) error {
	var w certificateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b, err := hex.DecodeString(w.Sign)
	if err != nil {
		return err
	}
	if len(b) != identity.SignatureSize {
		return errInvalidSignatureLength
	}
	var sig identity.Signature
	copy(sig[:], b)
	c.Token = w.Token
	c.Sign = sig
	return nil
}

// Build constructs and signs a certificate binding clientKey's holder to
// serverPubkey at authDate.
func Build(clientKey *identity.KeyPair, serverPubkey identity.PublicKey, authDate uint64) Certificate {
	token := Token{AuthDate: authDate, Server: serverPubkey}
	tokenBytes := token.Bytes()
	sig := clientKey.Sign(tokenBytes[:])
	return Certificate{Token: token, Sign: sig}
}

// Verify checks cert's signature under clientPubkey and that its token
// names expectedServer. Freshness (auth_date recency) is not this
// function's concern — the router enforces monotonic auth_date on
// replacement, per §4.3.
func Verify(cert Certificate, clientPubkey identity.PublicKey, expectedServer identity.PublicKey) bool {
	if cert.Token.Server != expectedServer {
		return false
	}
	tokenBytes := cert.Token.Bytes()
	return identity.Verify(cert.Sign, tokenBytes[:], clientPubkey)
}

// Supersedes reports whether cert should replace other as the current
// certificate for the same client, per §3/§8: the certificate with the
// strictly greater auth_date wins; ties break by lexicographically
// greater signature bytes.
func (cert Certificate) Supersedes(other Certificate) bool {
	if cert.Token.AuthDate != other.Token.AuthDate {
		return cert.Token.AuthDate > other.Token.AuthDate
	}
	return bytes.Compare(cert.Sign[:], other.Sign[:]) > 0
}
