package codec

import (
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// Message is the wire representation carried by send/poll (§3): content is
// the pipeline-encoded ciphertext, sign is over the decoded plaintext, and
// encoding names the pipeline that produced content.
type Message struct {
	Content  string `json:"content"`
	Sign     string `json:"sign"`
	Encoding string `json:"encoding"`
}

// Encrypt builds a Message from plaintext: it signs the plaintext with
// sender's key, then runs plaintext through the requested pipeline to
// produce Content, deriving the AEAD key/nonce from ECDH(sender, receiver)
// and the channel/seed context.
func Encrypt(cfg Config, sender *identity.KeyPair, receiver identity.PublicKey, channel string, seed uint64, pipeline Pipeline, plaintext []byte) (Message, error) {
	sig := sender.Sign(plaintext)

	key, err := deriveKeyMaterial(sender, sender.PublicKey(), receiver, channel, seed, pipeline)
	if err != nil {
		return Message{}, err
	}

	content, err := Encode(cfg, pipeline, key, plaintext)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Content:  content,
		Sign:     hexEncodeSig(sig),
		Encoding: pipeline.String(),
	}, nil
}

// Decrypt reverses Encrypt from the receiver's side: it runs Content
// through the pipeline named by Encoding, then verifies Sign over the
// recovered plaintext under senderPub.
func Decrypt(cfg Config, receiver *identity.KeyPair, sender identity.PublicKey, channel string, seed uint64, msg Message) ([]byte, error) {
	pipeline, err := Parse(msg.Encoding)
	if err != nil {
		return nil, err
	}

	key, err := deriveKeyMaterial(receiver, sender, receiver.PublicKey(), channel, seed, pipeline)
	if err != nil {
		return nil, err
	}

	plaintext, err := Decode(cfg, pipeline, key, msg.Content)
	if err != nil {
		return nil, err
	}

	sig, err := hexDecodeSig(msg.Sign)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "malformed message signature", err)
	}
	if !identity.Verify(sig, plaintext, sender) {
		return nil, protoerr.New(protoerr.KindIntegrity, "message signature did not verify")
	}
	return plaintext, nil
}

// deriveKeyMaterial computes the ECDH shared secret between self and peer
// (symmetric regardless of direction) and assembles the KeyMaterial used
// for nonce/key derivation. senderPub/receiverPub are fixed by protocol
// role, not by which side is computing locally.
func deriveKeyMaterial(self *identity.KeyPair, senderPub, receiverPub identity.PublicKey, channel string, seed uint64, pipeline Pipeline) (KeyMaterial, error) {
	if pipeline.Cipher == CipherNone {
		return KeyMaterial{SenderPub: senderPub, ReceiverPub: receiverPub, Channel: channel, Seed: seed}, nil
	}
	var peer identity.PublicKey
	if self.PublicKey() == senderPub {
		peer = receiverPub
	} else {
		peer = senderPub
	}
	shared, err := self.ECDH(peer)
	if err != nil {
		return KeyMaterial{}, protoerr.Wrap(protoerr.KindInternal, "ECDH failed", err)
	}
	return KeyMaterial{
		SharedSecret: shared,
		SenderPub:    senderPub,
		ReceiverPub:  receiverPub,
		Channel:      channel,
		Seed:         seed,
	}, nil
}
