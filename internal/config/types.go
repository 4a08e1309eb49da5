// Package config provides layered configuration loading for the EventBus
// and Agent processes (SPEC_FULL.md §4.12): a YAML file, overlaid by a
// local .env file, overlaid by explicit environment-variable overrides.
package config

import "time"

// Config is the root configuration document. Bus and Agent each read only
// the section relevant to their process, but both are parsed from the same
// shape so a single config.yaml can describe a co-located deployment.
type Config struct {
	Environment string       `yaml:"environment" json:"environment"`
	Bus         BusConfig    `yaml:"bus" json:"bus"`
	Agent       AgentConfig  `yaml:"agent" json:"agent"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
}

// BusConfig configures the EventBus server (spec.md §6 Bus options).
type BusConfig struct {
	ListenHost        string        `yaml:"listen_host" json:"listen_host"`
	ListenPort        int           `yaml:"listen_port" json:"listen_port"`
	TLSCAPath         string        `yaml:"tls_ca_path" json:"tls_ca_path"`
	TLSServerCertPath string        `yaml:"tls_server_cert_path" json:"tls_server_cert_path"`
	TLSServerKeyPath  string        `yaml:"tls_server_key_path" json:"tls_server_key_path"`
	MaxInflightSoft   int           `yaml:"max_inflight_soft" json:"max_inflight_soft"`
	MaxInflightHard   int           `yaml:"max_inflight_hard" json:"max_inflight_hard"`
	OverloadHysteresis float64      `yaml:"overload_hysteresis" json:"overload_hysteresis"`
	MaxEnvelopeBytes  int           `yaml:"max_envelope_bytes" json:"max_envelope_bytes"`
	DedupTTL          time.Duration `yaml:"dedup_ttl_seconds" json:"dedup_ttl_seconds"`
	DedupCapacity     int           `yaml:"dedup_capacity" json:"dedup_capacity"`
	MetricsPort       int           `yaml:"metrics_port" json:"metrics_port"`
	HealthPort        int           `yaml:"health_port" json:"health_port"`
	SinkBuffer        int           `yaml:"sink_buffer" json:"sink_buffer"`
	TrustMapPath      string        `yaml:"trust_map_path" json:"trust_map_path"`

	// PayloadConfidentiality gates the Stream Handshake (SPEC_FULL.md
	// §4.11): when enabled the Bus unseals each envelope's payload after
	// signature verification, using Ed25519PrivateKeyPath as its long-term
	// identity key for the ephemeral X25519 ECDH.
	PayloadConfidentialityEnabled bool   `yaml:"payload_confidentiality_enabled" json:"payload_confidentiality_enabled"`
	Ed25519PrivateKeyPath         string `yaml:"ed25519_private_key_path" json:"ed25519_private_key_path"`
}

// AgentConfig configures the Agent process (spec.md §6 Agent options).
type AgentConfig struct {
	BusAddress           string        `yaml:"bus_address" json:"bus_address"`
	TLSCAPath            string        `yaml:"tls_ca_path" json:"tls_ca_path"`
	TLSClientCertPath    string        `yaml:"tls_client_cert_path" json:"tls_client_cert_path"`
	TLSClientKeyPath     string        `yaml:"tls_client_key_path" json:"tls_client_key_path"`
	SourceIdentity       string        `yaml:"source_identity" json:"source_identity"`
	Ed25519PrivateKeyPath string       `yaml:"ed25519_private_key_path" json:"ed25519_private_key_path"`
	WALPath              string        `yaml:"wal_path" json:"wal_path"`
	WALMaxBytes          int64         `yaml:"wal_max_bytes" json:"wal_max_bytes"`
	WALMaxRecords        int           `yaml:"wal_max_records" json:"wal_max_records"`
	WALDedupWindow       time.Duration `yaml:"wal_dedup_window_s" json:"wal_dedup_window_s"`
	WALFsyncEveryAppend  bool          `yaml:"wal_fsync_every_append" json:"wal_fsync_every_append"`
	SendRate             float64       `yaml:"send_rate" json:"send_rate"`
	BatchSize            int           `yaml:"batch_size" json:"batch_size"`
	RetryBaseMS          int           `yaml:"retry_base_ms" json:"retry_base_ms"`
	RetryMaxMS           int           `yaml:"retry_max_ms" json:"retry_max_ms"`
	RetryJitter          float64       `yaml:"retry_jitter" json:"retry_jitter"`
	RetryFloorMS         int           `yaml:"retry_floor_ms" json:"retry_floor_ms"`
	BreakerFailureThreshold int        `yaml:"breaker_failure_threshold" json:"breaker_failure_threshold"`
	BreakerOpenSeconds   int           `yaml:"breaker_open_seconds" json:"breaker_open_seconds"`
	ShutdownGraceSeconds int           `yaml:"shutdown_grace_seconds" json:"shutdown_grace_seconds"`
	MetricsPort          int           `yaml:"metrics_port" json:"metrics_port"`
	HealthPort           int           `yaml:"health_port" json:"health_port"`

	// Transport selects the RPC used to reach the Bus: "http" (default,
	// httprpc's unary transport) or "ws" (wsrpc's streaming PublishStream
	// transport, required for PayloadConfidentialityEnabled).
	Transport string `yaml:"transport" json:"transport"`

	// PayloadConfidentiality gates the Agent side of the Stream Handshake
	// (SPEC_FULL.md §4.11): when enabled, the Agent seals each envelope's
	// payload against BusEd25519PublicKeyB64 before signing it.
	PayloadConfidentialityEnabled bool   `yaml:"payload_confidentiality_enabled" json:"payload_confidentiality_enabled"`
	BusEd25519PublicKeyB64        string `yaml:"bus_ed25519_public_key_b64" json:"bus_ed25519_public_key_b64"`

	// PgMirror optionally mirrors WAL records into Postgres for
	// fleet-wide dead-letter visibility (SPEC_FULL.md §2 item 16, §6).
	// It is never authoritative; filestore always is.
	PgMirror PgMirrorConfig `yaml:"pg_mirror" json:"pg_mirror"`
}

// PgMirrorConfig configures the optional internal/wal/pgstore mirror.
type PgMirrorConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// LoggingConfig mirrors the teacher's internal/logger configuration shape.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
	Output string `yaml:"output" json:"output"` // stdout, stderr, file path
}
