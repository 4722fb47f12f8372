package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment variable values
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables
// into the fields of cfg that commonly carry them: keypair material,
// seed server addresses, and the ambient logging/storage settings.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.ServerKeypair.PrivateKeyHex = SubstituteEnvVars(cfg.ServerKeypair.PrivateKeyHex)
	cfg.ServerKeypair.PrivateKeyPath = SubstituteEnvVars(cfg.ServerKeypair.PrivateKeyPath)
	cfg.ListenAddr = SubstituteEnvVars(cfg.ListenAddr)
	for i, addr := range cfg.SeedServers {
		cfg.SeedServers[i] = SubstituteEnvVars(addr)
	}
	cfg.RoutingSnapshotPath = SubstituteEnvVars(cfg.RoutingSnapshotPath)

	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
	cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)

	cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
	cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)

	cfg.Storage.PostgresDSN = SubstituteEnvVars(cfg.Storage.PostgresDSN)
}

// GetEnvironment returns the current environment from HYPERBOREA_ENV or
// ENVIRONMENT, defaulting to development.
func GetEnvironment() string {
	env := os.Getenv("HYPERBOREA_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment returns true if running in development or local environment
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
