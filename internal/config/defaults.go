package config

import "time"

// Default returns a Config populated with spec.md §6's documented defaults,
// the starting point setDefaults fills any remaining zero fields from
// after a YAML file is parsed.
func Default() *Config {
	return &Config{
		Environment: "development",
		Bus: BusConfig{
			ListenHost:         "0.0.0.0",
			ListenPort:         50051,
			MaxInflightSoft:    100,
			MaxInflightHard:    500,
			OverloadHysteresis: 0.8,
			MaxEnvelopeBytes:   131072,
			DedupTTL:           300 * time.Second,
			DedupCapacity:      100000,
			MetricsPort:        9100,
			HealthPort:         8080,
			SinkBuffer:         1024,
		},
		Agent: AgentConfig{
			WALMaxBytes:             200 * 1024 * 1024,
			WALMaxRecords:           100000,
			WALDedupWindow:          300 * time.Second,
			WALFsyncEveryAppend:     true,
			BatchSize:               100,
			RetryBaseMS:             1000,
			RetryMaxMS:              60000,
			RetryJitter:             0.5,
			RetryFloorMS:            100,
			BreakerFailureThreshold: 5,
			BreakerOpenSeconds:      30,
			ShutdownGraceSeconds:    10,
			MetricsPort:             9101,
			HealthPort:              8081,
			Transport:               "http",
			PgMirror:                PgMirrorConfig{SSLMode: "disable"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// setDefaults fills any zero-valued field left unset by the YAML file with
// Default()'s value, field by field, so a partial config.yaml (e.g. only
// overriding listen_port) does not lose every other default.
func setDefaults(cfg *Config) {
	d := Default()

	if cfg.Environment == "" {
		cfg.Environment = d.Environment
	}

	b, db := &cfg.Bus, &d.Bus
	if b.ListenHost == "" {
		b.ListenHost = db.ListenHost
	}
	if b.ListenPort == 0 {
		b.ListenPort = db.ListenPort
	}
	if b.MaxInflightSoft == 0 {
		b.MaxInflightSoft = db.MaxInflightSoft
	}
	if b.MaxInflightHard == 0 {
		b.MaxInflightHard = db.MaxInflightHard
	}
	if b.OverloadHysteresis == 0 {
		b.OverloadHysteresis = db.OverloadHysteresis
	}
	if b.MaxEnvelopeBytes == 0 {
		b.MaxEnvelopeBytes = db.MaxEnvelopeBytes
	}
	if b.DedupTTL == 0 {
		b.DedupTTL = db.DedupTTL
	}
	if b.DedupCapacity == 0 {
		b.DedupCapacity = db.DedupCapacity
	}
	if b.MetricsPort == 0 {
		b.MetricsPort = db.MetricsPort
	}
	if b.HealthPort == 0 {
		b.HealthPort = db.HealthPort
	}
	if b.SinkBuffer == 0 {
		b.SinkBuffer = db.SinkBuffer
	}

	a, da := &cfg.Agent, &d.Agent
	if a.WALMaxBytes == 0 {
		a.WALMaxBytes = da.WALMaxBytes
	}
	if a.WALMaxRecords == 0 {
		a.WALMaxRecords = da.WALMaxRecords
	}
	if a.WALDedupWindow == 0 {
		a.WALDedupWindow = da.WALDedupWindow
	}
	if a.BatchSize == 0 {
		a.BatchSize = da.BatchSize
	}
	if a.RetryBaseMS == 0 {
		a.RetryBaseMS = da.RetryBaseMS
	}
	if a.RetryMaxMS == 0 {
		a.RetryMaxMS = da.RetryMaxMS
	}
	if a.RetryJitter == 0 {
		a.RetryJitter = da.RetryJitter
	}
	if a.RetryFloorMS == 0 {
		a.RetryFloorMS = da.RetryFloorMS
	}
	if a.BreakerFailureThreshold == 0 {
		a.BreakerFailureThreshold = da.BreakerFailureThreshold
	}
	if a.BreakerOpenSeconds == 0 {
		a.BreakerOpenSeconds = da.BreakerOpenSeconds
	}
	if a.ShutdownGraceSeconds == 0 {
		a.ShutdownGraceSeconds = da.ShutdownGraceSeconds
	}
	if a.MetricsPort == 0 {
		a.MetricsPort = da.MetricsPort
	}
	if a.HealthPort == 0 {
		a.HealthPort = da.HealthPort
	}
	if a.Transport == "" {
		a.Transport = da.Transport
	}
	if a.PgMirror.SSLMode == "" {
		a.PgMirror.SSLMode = da.PgMirror.SSLMode
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
}
