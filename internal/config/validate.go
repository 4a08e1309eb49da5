package config

import (
	"errors"
	"fmt"
)

// Level distinguishes a hard validation failure from an advisory warning
// that should be logged but not block startup.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// ValidationIssue names one field that failed a sanity check.
type ValidationIssue struct {
	Field   string
	Message string
	Level   Level
}

func (i ValidationIssue) Error() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Validate runs spec.md §6's documented range and consistency checks
// against a fully-defaulted Config, returning every issue found rather
// than stopping at the first.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	add := func(level Level, field, format string, args ...any) {
		issues = append(issues, ValidationIssue{Field: field, Message: fmt.Sprintf(format, args...), Level: level})
	}

	b := cfg.Bus
	if b.ListenPort <= 0 || b.ListenPort > 65535 {
		add(LevelError, "bus.listen_port", "must be in (0, 65535], got %d", b.ListenPort)
	}
	if b.MaxInflightSoft <= 0 {
		add(LevelError, "bus.max_inflight_soft", "must be positive, got %d", b.MaxInflightSoft)
	}
	if b.MaxInflightHard < b.MaxInflightSoft {
		add(LevelError, "bus.max_inflight_hard", "must be >= max_inflight_soft (%d), got %d", b.MaxInflightSoft, b.MaxInflightHard)
	}
	if b.OverloadHysteresis <= 0 || b.OverloadHysteresis > 1 {
		add(LevelError, "bus.overload_hysteresis", "must be in (0, 1], got %f", b.OverloadHysteresis)
	}
	if b.MaxEnvelopeBytes <= 0 {
		add(LevelError, "bus.max_envelope_bytes", "must be positive, got %d", b.MaxEnvelopeBytes)
	}
	if b.TLSCAPath == "" {
		add(LevelWarning, "bus.tls_ca_path", "unset; the Bus will not be able to verify client certificates")
	}
	if b.TLSServerCertPath == "" {
		add(LevelWarning, "bus.tls_server_cert_path", "unset; the Bus cannot start a TLS listener without it")
	}
	if b.TLSServerKeyPath == "" {
		add(LevelWarning, "bus.tls_server_key_path", "unset; the Bus cannot start a TLS listener without it")
	}
	if b.PayloadConfidentialityEnabled && b.Ed25519PrivateKeyPath == "" {
		add(LevelError, "bus.ed25519_private_key_path", "must be set when payload_confidentiality_enabled is true")
	}

	a := cfg.Agent
	if a.SourceIdentity == "" {
		add(LevelError, "agent.source_identity", "must be set")
	}
	if a.Ed25519PrivateKeyPath == "" {
		add(LevelError, "agent.ed25519_private_key_path", "must be set")
	}
	if a.WALPath == "" {
		add(LevelError, "agent.wal_path", "must be set")
	}
	if a.BatchSize <= 0 {
		add(LevelError, "agent.batch_size", "must be positive, got %d", a.BatchSize)
	}
	if a.RetryMaxMS < a.RetryBaseMS {
		add(LevelError, "agent.retry_max_ms", "must be >= retry_base_ms (%d), got %d", a.RetryBaseMS, a.RetryMaxMS)
	}
	if a.BreakerFailureThreshold <= 0 {
		add(LevelError, "agent.breaker_failure_threshold", "must be positive, got %d", a.BreakerFailureThreshold)
	}
	switch a.Transport {
	case "http", "ws":
	default:
		add(LevelError, "agent.transport", "must be http or ws, got %q", a.Transport)
	}
	if a.PayloadConfidentialityEnabled {
		if a.Transport != "ws" {
			add(LevelError, "agent.payload_confidentiality_enabled", "requires agent.transport=ws (confidentiality is scoped to the PublishStream connection)")
		}
		if a.BusEd25519PublicKeyB64 == "" {
			add(LevelError, "agent.bus_ed25519_public_key_b64", "must be set when payload_confidentiality_enabled is true")
		}
	}
	if a.PgMirror.Enabled && a.PgMirror.Host == "" {
		add(LevelError, "agent.pg_mirror.host", "must be set when pg_mirror.enabled is true")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add(LevelError, "logging.level", "must be one of debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		add(LevelError, "logging.format", "must be json or text, got %q", cfg.Logging.Format)
	}

	return issues
}

// ValidateOrError runs Validate and joins every LevelError issue into a
// single error, per SPEC_FULL.md §4.12 ("validation failures are collected
// and returned as a joined error, not a panic"). Warnings are discarded
// here; callers that want to log them should call Validate directly.
func ValidateOrError(cfg *Config) error {
	var errs []error
	for _, issue := range Validate(cfg) {
		if issue.Level == LevelError {
			errs = append(errs, issue)
		}
	}
	return errors.Join(errs...)
}
