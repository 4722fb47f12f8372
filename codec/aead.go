package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hyperborea-net/hyperborea/codec/x963kdf"
)

var (
	errUnknownCompression = errors.New("unknown compression token")
	errUnknownCipher      = errors.New("unknown cipher token")
	errMissingKeyMaterial = errors.New("cipher requires key material")
)

// symmetricKey derives the 32-byte AEAD key for key via the ANSI X9.63
// concatenation KDF over the ECDH shared secret, per §4.4.
func symmetricKey(key KeyMaterial) ([]byte, error) {
	if len(key.SharedSecret) == 0 {
		return nil, errMissingKeyMaterial
	}
	sharedInfo := append(append([]byte{}, key.SenderPub[:]...), key.ReceiverPub[:]...)
	return x963kdf.Derive(key.SharedSecret, sharedInfo, 32), nil
}

func aeadFor(c Cipher, key KeyMaterial) (cipher.AEAD, error) {
	symKey, err := symmetricKey(key)
	if err != nil {
		return nil, err
	}
	switch c {
	case CipherAES256GCM:
		block, err := aes.NewCipher(symKey)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20Poly1305:
		return chacha20poly1305.New(symKey)
	default:
		return nil, errUnknownCipher
	}
}

func encrypt(c Cipher, key KeyMaterial, plaintext []byte) ([]byte, error) {
	if c == CipherNone {
		return plaintext, nil
	}
	aead, err := aeadFor(c, key)
	if err != nil {
		return nil, err
	}
	nonce := key.nonce()
	// AAD is the empty string, per §4.4.
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func decrypt(c Cipher, key KeyMaterial, ciphertext []byte) ([]byte, error) {
	if c == CipherNone {
		return ciphertext, nil
	}
	aead, err := aeadFor(c, key)
	if err != nil {
		return nil, err
	}
	nonce := key.nonce()
	return aead.Open(nil, nonce, ciphertext, nil)
}
