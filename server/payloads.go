package server

import (
	"encoding/json"
	"strconv"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/router"
)

// Payload shapes for the eight endpoints. Field names match
// the wire protocol literally and are case-sensitive.

type InfoResponse struct {
	PublicKey string `json:"public_key"`
	Stats     *Stats `json:"stats,omitempty"`
}

type Stats struct {
	LocalClients int `json:"local_clients"`
	KnownServers int `json:"known_servers"`
	RoutingTable int `json:"routing_table"`
	InboxDepth   int `json:"inbox_depth"`
}

type clientRecord struct {
	PublicKey   string                  `json:"public_key"`
	Certificate certificate.Certificate `json:"certificate"`
	Info        router.ClientInfo       `json:"info"`
}

type ClientsResponse struct {
	Clients []clientRecord `json:"clients"`
}

type serverRecord struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

type ServersResponse struct {
	Servers []serverRecord `json:"servers"`
}

type ConnectRequest struct {
	Certificate certificate.Certificate `json:"certificate"`
	ClientInfo  router.ClientInfo       `json:"client_info"`
}

type LookupRequest struct {
	PublicKey string  `json:"public_key"`
	Type      *string `json:"type,omitempty"`
}

type LookupResponse struct {
	Disposition string         `json:"disposition"`
	Client      *clientRecord  `json:"client,omitempty"`
	Server      *serverRecord  `json:"server,omitempty"`
	Available   bool           `json:"available,omitempty"`
	Hints       []serverRecord `json:"hints,omitempty"`
}

type AnnounceRequest struct {
	Client *clientAnnounce `json:"client,omitempty"`
	Server *serverRecord   `json:"server,omitempty"`
}

type clientAnnounce struct {
	PublicKey   string                  `json:"public_key"`
	Certificate certificate.Certificate `json:"certificate"`
	Info        router.ClientInfo       `json:"info"`
	Server      serverRecord            `json:"server"`
}

// SendRequest carries the message codec's seed alongside sender/receiver/
// channel: the codec derives its AEAD nonce from this tuple (codec/pipeline.go),
// so the server must persist it in the inbox for poll to hand back.
// Encoded as a decimal string for the same lossless round-trip reason as
// the envelope proof's seed.
type SendRequest struct {
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Channel  string          `json:"channel"`
	Seed     string          `json:"seed"`
	Message  json.RawMessage `json:"message"`
}

type PollRequest struct {
	Channel string `json:"channel"`
	Limit   *int   `json:"limit,omitempty"`
}

type PollResponse struct {
	Messages  []PolledMessage `json:"messages"`
	Remaining int             `json:"remaining"`
}

// PolledMessage carries the metadata a receiver needs to decrypt a codec
// message: sender, channel, and seed (all three, plus the receiver's own
// key, feed the message codec's key and nonce derivation). Seed is
// transported as a decimal string for the same lossless round-trip
// reason as the envelope proof's seed.
type PolledMessage struct {
	Sender  string          `json:"sender"`
	Channel string          `json:"channel"`
	Seed    uint64          `json:"-"`
	Message json.RawMessage `json:"message"`
}

type polledMessageWire struct {
	Sender  string          `json:"sender"`
	Channel string          `json:"channel"`
	Seed    string          `json:"seed"`
	Message json.RawMessage `json:"message"`
}

func (m PolledMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(polledMessageWire{
		Sender: m.Sender, Channel: m.Channel,
		Seed:    strconv.FormatUint(m.Seed, 10),
		Message: m.Message,
	})
}

func (m *PolledMessage) UnmarshalJSON(data []byte) error {
	var w polledMessageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	seed, err := strconv.ParseUint(w.Seed, 10, 64)
	if err != nil {
		return err
	}
	m.Sender, m.Channel, m.Seed, m.Message = w.Sender, w.Channel, seed, w.Message
	return nil
}
