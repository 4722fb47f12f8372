// Package envelope implements the request/response framing with
// mutual proof-of-key (C2): every request carries a signed proof that its
// sender holds the declared private key, and every successful response
// re-signs the request's seed so the client can bind the response to its
// request.
package envelope

import (
	"encoding/binary"
	"encoding/json"
	"strconv"

	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// StandardVersion is the only protocol revision this module understands.
const StandardVersion = 1

// Proof demonstrates possession of a private key by signing an
// arbitrary seed. Seed is carried as a JSON string so it round-trips
// losslessly through a uint64 — JSON numbers lose precision above
// 2^53-1, but seed is a full uint64 (§6).
type Proof struct {
	Seed uint64           `json:"-"`
	Sign identity.Signature `json:"-"`
}

type proofWire struct {
	Seed string `json:"seed"`
	Sign string `json:"sign"`
}

// seedBytes returns the big-endian 8-byte encoding of seed that both the
// request proof and the response proof sign.
func seedBytes(seed uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seed)
	return b[:]
}

// Request is the envelope every call into a handler is wrapped in.
type Request struct {
	Standard  int             `json:"standard"`
	PublicKey identity.PublicKey `json:"-"`
	Proof     Proof           `json:"proof"`
	Payload   json.RawMessage `json:"request"`
}

type requestWire struct {
	Standard  int             `json:"standard"`
	PublicKey string          `json:"public_key"`
	Proof     proofWire       `json:"proof"`
	Payload   json.RawMessage `json:"request"`
}

// SignedRequest builds and signs a Request for payload, using seed as the
// proof-of-key nonce. Callers own picking a fresh seed per request.
func SignedRequest(kp *identity.KeyPair, seed uint64, payload json.RawMessage) *Request {
	sig := kp.Sign(seedBytes(seed))
	return &Request{
		Standard:  StandardVersion,
		PublicKey: kp.PublicKey(),
		Proof:     Proof{Seed: seed, Sign: sig},
		Payload:   payload,
	}
}

// MarshalJSON renders the wire form (public_key as an address, seed as a
// decimal string, signature as hex).
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestWire{
		Standard:  r.Standard,
		PublicKey: identity.Encode(r.PublicKey),
		Proof: proofWire{
			Seed: strconv.FormatUint(r.Proof.Seed, 10),
			Sign: encodeSig(r.Proof.Sign),
		},
		Payload: r.Payload,
	})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	pk, err := identity.Decode(w.PublicKey)
	if err != nil {
		return err
	}
	seed, err := strconv.ParseUint(w.Proof.Seed, 10, 64)
	if err != nil {
		return err
	}
	sig, err := decodeSig(w.Proof.Sign)
	if err != nil {
		return err
	}
	r.Standard = w.Standard
	r.PublicKey = pk
	r.Proof = Proof{Seed: seed, Sign: sig}
	r.Payload = w.Payload
	return nil
}

// Validate checks the envelope contract on receipt of a request (§4.2a/b):
// standard tag and proof-of-key. Schema validation of Payload is the
// handler's job since it alone knows the expected shape.
func (r *Request) Validate() *protoerr.Error {
	if r.Standard != StandardVersion {
		return protoerr.New(protoerr.KindSchema, "unsupported standard version")
	}
	if !identity.Verify(r.Proof.Sign, seedBytes(r.Proof.Seed), r.PublicKey) {
		return protoerr.New(protoerr.KindIntegrity, "request proof did not verify")
	}
	return nil
}

// Response is either a success envelope (status 1xx) or an error envelope.
type Response struct {
	Status    protoerr.Status
	PublicKey identity.PublicKey // server identity; zero on error envelopes
	Sign      identity.Signature // re-signed request seed; zero on error envelopes
	Payload   json.RawMessage
	Reason    string // set only on error envelopes
}

type responseWire struct {
	Status    int             `json:"status"`
	PublicKey string          `json:"public_key,omitempty"`
	Sign      string          `json:"sign,omitempty"`
	Payload   json.RawMessage `json:"response,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Success builds a signed success envelope for req, per the response
// signing contract: the server signs the *request's* seed bytes.
func Success(kp *identity.KeyPair, req *Request, payload json.RawMessage) *Response {
	sig := kp.Sign(seedBytes(req.Proof.Seed))
	return &Response{
		Status:    protoerr.StatusSuccess,
		PublicKey: kp.PublicKey(),
		Sign:      sig,
		Payload:   payload,
	}
}

// Failure builds an error envelope. reason must never leak internal
// details beyond a short, generic description (§7 propagation policy).
func Failure(status protoerr.Status, reason string) *Response {
	return &Response{Status: status, Reason: reason}
}

func (r *Response) MarshalJSON() ([]byte, error) {
	w := responseWire{Status: int(r.Status)}
	if r.Status.IsSuccess() {
		w.PublicKey = identity.Encode(r.PublicKey)
		w.Sign = encodeSig(r.Sign)
		w.Payload = r.Payload
	} else {
		w.Reason = r.Reason
	}
	return json.Marshal(w)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Status = protoerr.Status(w.Status)
	r.Reason = w.Reason
	r.Payload = w.Payload
	if r.Status.IsSuccess() {
		pk, err := identity.Decode(w.PublicKey)
		if err != nil {
			return err
		}
		sig, err := decodeSig(w.Sign)
		if err != nil {
			return err
		}
		r.PublicKey = pk
		r.Sign = sig
	}
	return nil
}

// Verify checks the response-signing contract for a success envelope:
// the server's signature must cover the original request's seed bytes.
// Callers should treat a mismatch as protoerr.KindIntegrity (client-side
// CertificateError).
func (r *Response) Verify(requestSeed uint64) bool {
	if !r.Status.IsSuccess() {
		return false
	}
	return identity.Verify(r.Sign, seedBytes(requestSeed), r.PublicKey)
}
