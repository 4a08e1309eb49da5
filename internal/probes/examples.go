package probes

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
)

// The probes in this file are reference implementations of the Probe
// contract, not production collectors — spec.md §1 Non-goals excludes
// "concrete telemetry collectors per signal type (process scan, log
// parsing, USB enumeration, DNS sniffing, FIM hashing)" and specs only the
// interface they must satisfy. ProcessProbe introspects the Agent's own
// process, which is real data; the remaining probes synthesize one
// plausible event per cycle so cmd/agent has a runnable default fleet that
// exercises every payload variant end to end.

// ProcessProbe reports the Agent's own running process once per interval.
type ProcessProbe struct {
	interval time.Duration
}

// NewProcessProbe creates a ProcessProbe polling every interval.
func NewProcessProbe(interval time.Duration) *ProcessProbe {
	return &ProcessProbe{interval: interval}
}

func (p *ProcessProbe) Name() string                    { return "process" }
func (p *ProcessProbe) Variant() envelope.PayloadVariant { return envelope.PayloadProcess }
func (p *ProcessProbe) Interval() time.Duration          { return p.interval }

func (p *ProcessProbe) Collect(ctx context.Context) ([]Event, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	rec := ProcessRecord{
		PID:     os.Getpid(),
		Name:    "eventbus-agent",
		ExePath: exe,
		User:    user,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []Event{{
		Variant:        envelope.PayloadProcess,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     time.Now(),
	}}, nil
}

// FlowProbe synthesizes one loopback network flow record per cycle.
type FlowProbe struct {
	interval time.Duration
}

func NewFlowProbe(interval time.Duration) *FlowProbe { return &FlowProbe{interval: interval} }

func (p *FlowProbe) Name() string                    { return "flow" }
func (p *FlowProbe) Variant() envelope.PayloadVariant { return envelope.PayloadFlow }
func (p *FlowProbe) Interval() time.Duration          { return p.interval }

func (p *FlowProbe) Collect(ctx context.Context) ([]Event, error) {
	rec := FlowRecord{
		SrcIP:    "127.0.0.1",
		DstIP:    "127.0.0.1",
		SrcPort:  0,
		DstPort:  443,
		Protocol: "tcp",
		Bytes:    0,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []Event{{
		Variant:        envelope.PayloadFlow,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     time.Now(),
	}}, nil
}

// AuthProbe synthesizes one local authentication record per cycle,
// reporting the process's own effective user as a successful session
// check-in.
type AuthProbe struct {
	interval time.Duration
}

func NewAuthProbe(interval time.Duration) *AuthProbe { return &AuthProbe{interval: interval} }

func (p *AuthProbe) Name() string                    { return "auth" }
func (p *AuthProbe) Variant() envelope.PayloadVariant { return envelope.PayloadAuth }
func (p *AuthProbe) Interval() time.Duration          { return p.interval }

func (p *AuthProbe) Collect(ctx context.Context) ([]Event, error) {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	rec := AuthRecord{
		User:     user,
		SourceIP: "127.0.0.1",
		Success:  true,
		Method:   "local",
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []Event{{
		Variant:        envelope.PayloadAuth,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     time.Now(),
	}}, nil
}

// DNSProbe synthesizes one resolution record per cycle.
type DNSProbe struct {
	interval time.Duration
}

func NewDNSProbe(interval time.Duration) *DNSProbe { return &DNSProbe{interval: interval} }

func (p *DNSProbe) Name() string                    { return "dns" }
func (p *DNSProbe) Variant() envelope.PayloadVariant { return envelope.PayloadDNS }
func (p *DNSProbe) Interval() time.Duration          { return p.interval }

func (p *DNSProbe) Collect(ctx context.Context) ([]Event, error) {
	rec := DNSRecord{
		Query:       "localhost",
		QType:       "A",
		ResponseIPs: []string{"127.0.0.1"},
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []Event{{
		Variant:        envelope.PayloadDNS,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     time.Now(),
	}}, nil
}

// FileChangeProbe reports the Agent's own executable as an observed file,
// modeling a FIM check-in rather than a real inotify/fanotify watcher.
type FileChangeProbe struct {
	interval time.Duration
}

func NewFileChangeProbe(interval time.Duration) *FileChangeProbe {
	return &FileChangeProbe{interval: interval}
}

func (p *FileChangeProbe) Name() string                    { return "file_change" }
func (p *FileChangeProbe) Variant() envelope.PayloadVariant { return envelope.PayloadFileChange }
func (p *FileChangeProbe) Interval() time.Duration          { return p.interval }

func (p *FileChangeProbe) Collect(ctx context.Context) ([]Event, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	rec := FileChangeRecord{
		Path: exe,
		Op:   "modify",
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return []Event{{
		Variant:        envelope.PayloadFileChange,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     time.Now(),
	}}, nil
}

// PeripheralProbe is a reference implementation that never observes a real
// USB/HID event; it exists only so the payload variant has a registered
// probe. Collect always returns no events.
type PeripheralProbe struct {
	interval time.Duration
}

func NewPeripheralProbe(interval time.Duration) *PeripheralProbe {
	return &PeripheralProbe{interval: interval}
}

func (p *PeripheralProbe) Name() string                    { return "peripheral" }
func (p *PeripheralProbe) Variant() envelope.PayloadVariant { return envelope.PayloadPeripheral }
func (p *PeripheralProbe) Interval() time.Duration          { return p.interval }

func (p *PeripheralProbe) Collect(ctx context.Context) ([]Event, error) {
	return nil, nil
}
