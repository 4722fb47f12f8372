// Package router implements the server-side routing view (C5): the set of
// directly connected clients, known peer servers, and the client→server
// table learned by gossip. The Router is the exclusive owner of routing
// state; certificates and records are shared immutably by value.
package router

import (
	"time"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/identity"
)

// ClientKind discriminates the ClientInfo variants from §3.
type ClientKind string

const (
	KindThin   ClientKind = "thin"
	KindThick  ClientKind = "thick"
	KindServer ClientKind = "server"
	KindFile   ClientKind = "file"
)

// ClientInfo is the tagged variant describing how a client can be reached.
// Address is opaque to the protocol; it is empty for the "thin" variant.
type ClientInfo struct {
	Kind    ClientKind `json:"kind"`
	Address string     `json:"address,omitempty"`
}

// Client is a participant record: its identity, its current certificate,
// and how it can be reached.
type Client struct {
	PublicKey   identity.PublicKey     `json:"public_key"`
	Certificate certificate.Certificate `json:"certificate"`
	Info        ClientInfo             `json:"info"`
}

// Server is a peer server record.
type Server struct {
	PublicKey identity.PublicKey `json:"public_key"`
	Address   string             `json:"address"`
}

// RoutingEntry is a learned client→server binding, with the certificate
// that justified it and when it was last refreshed.
type RoutingEntry struct {
	Client     Client             `json:"client"`
	Server     Server             `json:"server"`
	Certificate certificate.Certificate `json:"certificate"`
	ObservedAt time.Time          `json:"observed_at"`
}

// localEntry is the Router's internal record for a directly-connected
// client.
type localEntry struct {
	Info        ClientInfo
	Certificate certificate.Certificate
	LastSeen    time.Time
}

// serverEntry is the Router's internal record for a known peer server.
type serverEntry struct {
	Server   Server
	LastSeen time.Time
}

// routingTableEntry is the Router's internal record for a remote binding.
type routingTableEntry struct {
	Server       Server
	Certificate  certificate.Certificate
	ClientInfo   ClientInfo
	LastRefresh  time.Time
}

// Config bounds the router's resource usage, per §4.5/§5.
type Config struct {
	RoutingTableCapacity int           // default 10_000
	KnownServersCapacity int           // default 1_000
	EntryTTL             time.Duration // default 1h
	LivenessWindow       time.Duration // default 60s
}

// DefaultConfig returns the protocol's documented defaults.
func DefaultConfig() Config {
	return Config{
		RoutingTableCapacity: 10_000,
		KnownServersCapacity: 1_000,
		EntryTTL:             time.Hour,
		LivenessWindow:       60 * time.Second,
	}
}
