// Package config provides the on-disk configuration record: a
// server_keypair, listen_addr, seed_servers, an optional
// routing_snapshot_path, inbox limits, a message size limit, and
// timeouts, plus the client-side equivalent.
package config

import "time"

// Config is the server-side configuration record.
type Config struct {
	ServerKeypair       KeypairConfig  `yaml:"server_keypair" json:"server_keypair"`
	ListenAddr          string         `yaml:"listen_addr" json:"listen_addr"`
	SeedServers         []string       `yaml:"seed_servers" json:"seed_servers"`
	RoutingSnapshotPath string         `yaml:"routing_snapshot_path,omitempty" json:"routing_snapshot_path,omitempty"`
	InboxLimits         InboxLimits    `yaml:"inbox_limits" json:"inbox_limits"`
	MessageSizeLimit    int            `yaml:"message_size_limit" json:"message_size_limit"`
	Timeouts            TimeoutsConfig `yaml:"timeouts" json:"timeouts"`
	Logging             LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics             MetricsConfig  `yaml:"metrics" json:"metrics"`
	Storage             StorageConfig  `yaml:"storage" json:"storage"`
}

// KeypairConfig points at (or inlines) a secp256k1 identity. Exactly one
// of PrivateKeyHex or PrivateKeyPath should be set; a loader reads
// whichever is present, preferring the path when both are.
type KeypairConfig struct {
	PrivateKeyHex  string `yaml:"private_key_hex,omitempty" json:"private_key_hex,omitempty"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty" json:"private_key_path,omitempty"`
}

// InboxLimits mirrors inbox.Config's fields so a loaded Config maps onto
// it directly.
type InboxLimits struct {
	PerChannelCapacity int `yaml:"per_channel_capacity" json:"per_channel_capacity"`
	AggregateCapacity  int `yaml:"aggregate_capacity" json:"aggregate_capacity"`
}

// TimeoutsConfig bounds the blocking operations:
// traversal's overall deadline, the per-hop query budget it derives
// from, and the client-facing request timeout.
type TimeoutsConfig struct {
	TraversalDeadline time.Duration `yaml:"traversal_deadline" json:"traversal_deadline"`
	HopTimeout        time.Duration `yaml:"hop_timeout" json:"hop_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig configures the internal/logger sink.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// StorageConfig selects the routing-table snapshot backend.
type StorageConfig struct {
	Type        string `yaml:"type" json:"type"` // memory, postgres
	PostgresDSN string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
}

// ClientConfig is the client-side equivalent: a keypair plus retry/codec
// tuning. Clients never accept connections, so there is no listen_addr.
type ClientConfig struct {
	ClientKeypair KeypairConfig  `yaml:"client_keypair" json:"client_keypair"`
	Timeouts      TimeoutsConfig `yaml:"timeouts" json:"timeouts"`
	Logging       LoggingConfig  `yaml:"logging" json:"logging"`
}
