package envelope

import (
	"encoding/hex"
	"errors"

	"github.com/hyperborea-net/hyperborea/identity"
)

var errInvalidSignatureLength = errors.New("signature must be 64 bytes")

func encodeSig(sig identity.Signature) string {
	return hex.EncodeToString(sig[:])
}

func decodeSig(s string) (identity.Signature, error) {
	var sig identity.Signature
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, err
	}
	if len(b) != identity.SignatureSize {
		return sig, errInvalidSignatureLength
	}
	copy(sig[:], b)
	return sig, nil
}
