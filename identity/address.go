package identity

import (
	"encoding/base32"
	"errors"
	"strings"
)

// addressEncoding is the RFC 5155 base32 alphabet, used lowercase and
// without padding. encoding/base32's HexEncoding already implements this
// exact alphabet (uppercase); NewEncoding below reproduces it lowercase.
//
// No pack example wraps this specific alphabet in a third-party library —
// see DESIGN.md for why this stays on the standard library.
var addressEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

const addressPrefix = "v1:"

// ErrInvalidAddress is returned by Decode for any string that is not a
// well-formed v1 address: wrong version tag, bad alphabet, or a decoded
// length other than PublicKeySize.
var ErrInvalidAddress = errors.New("invalid address")

// Encode renders pk as its canonical lowercase "v1:<base32>" textual form.
func Encode(pk PublicKey) string {
	return addressPrefix + addressEncoding.EncodeToString(pk[:])
}

// Decode parses a textual address, case-insensitively, back into a
// PublicKey. It returns ErrInvalidAddress when the prefix, the alphabet
// or the decoded length is wrong.
func Decode(address string) (PublicKey, error) {
	var zero PublicKey
	lower := strings.ToLower(address)
	if !strings.HasPrefix(lower, addressPrefix) {
		return zero, ErrInvalidAddress
	}
	body := lower[len(addressPrefix):]
	decoded, err := addressEncoding.DecodeString(body)
	if err != nil {
		return zero, ErrInvalidAddress
	}
	if len(decoded) != PublicKeySize {
		return zero, ErrInvalidAddress
	}
	var pk PublicKey
	copy(pk[:], decoded)
	return pk, nil
}

// String is a convenience so a PublicKey can be used directly in format
// verbs and log fields.
func (pk PublicKey) String() string {
	return Encode(pk)
}

// Equal reports whether two public keys encode the same 33-byte point.
func (pk PublicKey) Equal(other PublicKey) bool {
	return pk == other
}
