package config

import "fmt"

// ValidationError names a single invalid field and why.
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the fields Load cannot sanely default: a server needs
// somewhere to listen and at least one way to get a keypair, seed
// servers must be non-empty strings, and a postgres storage backend
// needs a DSN.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.ListenAddr == "" {
		errs = append(errs, ValidationError{Field: "listen_addr", Message: "must not be empty", Level: "error"})
	}
	if cfg.ServerKeypair.PrivateKeyHex == "" && cfg.ServerKeypair.PrivateKeyPath == "" {
		errs = append(errs, ValidationError{
			Field:   "server_keypair",
			Message: "one of private_key_hex or private_key_path must be set",
			Level:   "error",
		})
	}
	for i, addr := range cfg.SeedServers {
		if addr == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("seed_servers[%d]", i),
				Message: "must not be empty",
				Level:   "error",
			})
		}
	}
	if cfg.MessageSizeLimit <= 0 {
		errs = append(errs, ValidationError{Field: "message_size_limit", Message: "must be positive", Level: "error"})
	}
	if cfg.Storage.Type == "postgres" && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.postgres_dsn",
			Message: "required when storage.type is postgres",
			Level:   "error",
		})
	}
	if cfg.Storage.Type != "memory" && cfg.Storage.Type != "postgres" {
		errs = append(errs, ValidationError{
			Field:   "storage.type",
			Message: "must be \"memory\" or \"postgres\"",
			Level:   "warning",
		})
	}

	return errs
}
