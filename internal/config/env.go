package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values, leaving the literal text untouched if VAR is unset and
// no default is given.
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
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		if !strings.Contains(match, ":") {
			return match
		}
		return defaultValue
	})
}

// substituteEnvVarsInConfig runs SubstituteEnvVars over every string field
// that plausibly holds a secret or host reference, so config.yaml can write
// `ed25519_private_key_path: ${AGENT_KEY_PATH:/etc/eventbus/agent.key}`.
func substituteEnvVarsInConfig(cfg *Config) {
	cfg.Bus.ListenHost = SubstituteEnvVars(cfg.Bus.ListenHost)
	cfg.Bus.TLSCAPath = SubstituteEnvVars(cfg.Bus.TLSCAPath)
	cfg.Bus.TLSServerCertPath = SubstituteEnvVars(cfg.Bus.TLSServerCertPath)
	cfg.Bus.TLSServerKeyPath = SubstituteEnvVars(cfg.Bus.TLSServerKeyPath)
	cfg.Bus.TrustMapPath = SubstituteEnvVars(cfg.Bus.TrustMapPath)
	cfg.Agent.BusAddress = SubstituteEnvVars(cfg.Agent.BusAddress)
	cfg.Agent.TLSCAPath = SubstituteEnvVars(cfg.Agent.TLSCAPath)
	cfg.Agent.TLSClientCertPath = SubstituteEnvVars(cfg.Agent.TLSClientCertPath)
	cfg.Agent.TLSClientKeyPath = SubstituteEnvVars(cfg.Agent.TLSClientKeyPath)
	cfg.Agent.SourceIdentity = SubstituteEnvVars(cfg.Agent.SourceIdentity)
	cfg.Agent.Ed25519PrivateKeyPath = SubstituteEnvVars(cfg.Agent.Ed25519PrivateKeyPath)
	cfg.Agent.WALPath = SubstituteEnvVars(cfg.Agent.WALPath)
	cfg.Agent.BusEd25519PublicKeyB64 = SubstituteEnvVars(cfg.Agent.BusEd25519PublicKeyB64)
	cfg.Bus.Ed25519PrivateKeyPath = SubstituteEnvVars(cfg.Bus.Ed25519PrivateKeyPath)
	cfg.Agent.PgMirror.Host = SubstituteEnvVars(cfg.Agent.PgMirror.Host)
	cfg.Agent.PgMirror.Password = SubstituteEnvVars(cfg.Agent.PgMirror.Password)
	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
	cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
}

// applyEnvironmentOverrides applies the highest-priority layer: explicit
// BUS_*/AGENT_* environment variables, read after .env has been loaded into
// the process environment.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("BUS_LISTEN_HOST"); v != "" {
		cfg.Bus.ListenHost = v
	}
	if v, ok := envInt("BUS_LISTEN_PORT"); ok {
		cfg.Bus.ListenPort = v
	}
	if v := os.Getenv("BUS_TLS_CA_PATH"); v != "" {
		cfg.Bus.TLSCAPath = v
	}
	if v := os.Getenv("BUS_TLS_SERVER_CERT_PATH"); v != "" {
		cfg.Bus.TLSServerCertPath = v
	}
	if v := os.Getenv("BUS_TLS_SERVER_KEY_PATH"); v != "" {
		cfg.Bus.TLSServerKeyPath = v
	}
	if v, ok := envInt("BUS_MAX_INFLIGHT_SOFT"); ok {
		cfg.Bus.MaxInflightSoft = v
	}
	if v, ok := envInt("BUS_MAX_INFLIGHT_HARD"); ok {
		cfg.Bus.MaxInflightHard = v
	}
	if v, ok := envFloat("BUS_OVERLOAD_HYSTERESIS"); ok {
		cfg.Bus.OverloadHysteresis = v
	}
	if v, ok := envInt("BUS_MAX_ENVELOPE_BYTES"); ok {
		cfg.Bus.MaxEnvelopeBytes = v
	}
	if v, ok := envInt("BUS_DEDUP_CAPACITY"); ok {
		cfg.Bus.DedupCapacity = v
	}
	if v, ok := envInt("BUS_METRICS_PORT"); ok {
		cfg.Bus.MetricsPort = v
	}
	if v, ok := envInt("BUS_HEALTH_PORT"); ok {
		cfg.Bus.HealthPort = v
	}
	if v := os.Getenv("BUS_TRUST_MAP_PATH"); v != "" {
		cfg.Bus.TrustMapPath = v
	}
	if v := os.Getenv("BUS_ED25519_PRIVATE_KEY_PATH"); v != "" {
		cfg.Bus.Ed25519PrivateKeyPath = v
	}
	if v, ok := envBool("BUS_PAYLOAD_CONFIDENTIALITY_ENABLED"); ok {
		cfg.Bus.PayloadConfidentialityEnabled = v
	}

	if v := os.Getenv("AGENT_BUS_ADDRESS"); v != "" {
		cfg.Agent.BusAddress = v
	}
	if v := os.Getenv("AGENT_TLS_CA_PATH"); v != "" {
		cfg.Agent.TLSCAPath = v
	}
	if v := os.Getenv("AGENT_TLS_CLIENT_CERT_PATH"); v != "" {
		cfg.Agent.TLSClientCertPath = v
	}
	if v := os.Getenv("AGENT_TLS_CLIENT_KEY_PATH"); v != "" {
		cfg.Agent.TLSClientKeyPath = v
	}
	if v := os.Getenv("AGENT_SOURCE_IDENTITY"); v != "" {
		cfg.Agent.SourceIdentity = v
	}
	if v := os.Getenv("AGENT_ED25519_PRIVATE_KEY_PATH"); v != "" {
		cfg.Agent.Ed25519PrivateKeyPath = v
	}
	if v := os.Getenv("AGENT_WAL_PATH"); v != "" {
		cfg.Agent.WALPath = v
	}
	if v, ok := envInt("AGENT_BATCH_SIZE"); ok {
		cfg.Agent.BatchSize = v
	}
	if v, ok := envFloat("AGENT_SEND_RATE"); ok {
		cfg.Agent.SendRate = v
	}
	if v := os.Getenv("AGENT_TRANSPORT"); v != "" {
		cfg.Agent.Transport = v
	}
	if v, ok := envBool("AGENT_PAYLOAD_CONFIDENTIALITY_ENABLED"); ok {
		cfg.Agent.PayloadConfidentialityEnabled = v
	}
	if v := os.Getenv("AGENT_BUS_ED25519_PUBLIC_KEY_B64"); v != "" {
		cfg.Agent.BusEd25519PublicKeyB64 = v
	}
	if v, ok := envBool("AGENT_PG_MIRROR_ENABLED"); ok {
		cfg.Agent.PgMirror.Enabled = v
	}
	if v := os.Getenv("AGENT_PG_MIRROR_HOST"); v != "" {
		cfg.Agent.PgMirror.Host = v
	}
	if v := os.Getenv("AGENT_PG_MIRROR_PASSWORD"); v != "" {
		cfg.Agent.PgMirror.Password = v
	}

	if v := os.Getenv("EVENTBUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EVENTBUS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// GetEnvironment returns the current environment from EVENTBUS_ENV, falling
// back to ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	if env := os.Getenv("EVENTBUS_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
