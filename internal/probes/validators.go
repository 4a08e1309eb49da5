package probes

import (
	"encoding/json"
	"fmt"
	"net"
	"regexp"
)

var sha256HexPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validPort(p int) bool { return p >= 0 && p <= 65535 }

func validIP(s string) bool { return net.ParseIP(s) != nil }

func validSHA256Hex(s string) bool { return sha256HexPattern.MatchString(s) }

func validDomain(s string) bool { return len(s) > 0 && len(s) <= 253 && domainPattern.MatchString(s) }

// FlowRecord is the typed payload for envelope.PayloadFlow.
type FlowRecord struct {
	SrcIP    string `json:"src_ip"`
	DstIP    string `json:"dst_ip"`
	SrcPort  int    `json:"src_port"`
	DstPort  int    `json:"dst_port"`
	Protocol string `json:"protocol"`
	Bytes    int64  `json:"bytes"`
}

// ValidateFlow checks the closed-set rules for a flow record.
func ValidateFlow(payload []byte) error {
	var r FlowRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed flow payload: %w", err)
	}
	if !validIP(r.SrcIP) || !validIP(r.DstIP) {
		return fmt.Errorf("probes: flow record has invalid IP address")
	}
	if !validPort(r.SrcPort) || !validPort(r.DstPort) {
		return fmt.Errorf("probes: flow record has out-of-range port")
	}
	if r.Protocol == "" {
		return fmt.Errorf("probes: flow record missing protocol")
	}
	if r.Bytes < 0 {
		return fmt.Errorf("probes: flow record has negative byte count")
	}
	return nil
}

// ProcessRecord is the typed payload for envelope.PayloadProcess.
type ProcessRecord struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	ExePath string `json:"exe_path"`
	SHA256  string `json:"sha256"`
	User    string `json:"user"`
}

// ValidateProcess checks the closed-set rules for a process record.
func ValidateProcess(payload []byte) error {
	var r ProcessRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed process payload: %w", err)
	}
	if r.PID <= 0 {
		return fmt.Errorf("probes: process record has non-positive pid")
	}
	if r.Name == "" || r.ExePath == "" {
		return fmt.Errorf("probes: process record missing name or exe_path")
	}
	if r.SHA256 != "" && !validSHA256Hex(r.SHA256) {
		return fmt.Errorf("probes: process record has malformed sha256")
	}
	return nil
}

// AuthRecord is the typed payload for envelope.PayloadAuth.
type AuthRecord struct {
	User     string `json:"user"`
	SourceIP string `json:"source_ip"`
	Success  bool   `json:"success"`
	Method   string `json:"method"`
}

// ValidateAuth checks the closed-set rules for an auth record.
func ValidateAuth(payload []byte) error {
	var r AuthRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed auth payload: %w", err)
	}
	if r.User == "" {
		return fmt.Errorf("probes: auth record missing user")
	}
	if r.SourceIP != "" && !validIP(r.SourceIP) {
		return fmt.Errorf("probes: auth record has invalid source_ip")
	}
	if r.Method == "" {
		return fmt.Errorf("probes: auth record missing method")
	}
	return nil
}

// DNSRecord is the typed payload for envelope.PayloadDNS.
type DNSRecord struct {
	Query       string   `json:"query"`
	QType       string   `json:"qtype"`
	ResponseIPs []string `json:"response_ips"`
}

// ValidateDNS checks the closed-set rules for a DNS record.
func ValidateDNS(payload []byte) error {
	var r DNSRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed dns payload: %w", err)
	}
	if !validDomain(r.Query) {
		return fmt.Errorf("probes: dns record has malformed query domain")
	}
	if r.QType == "" {
		return fmt.Errorf("probes: dns record missing qtype")
	}
	for _, ip := range r.ResponseIPs {
		if !validIP(ip) {
			return fmt.Errorf("probes: dns record has invalid response ip %q", ip)
		}
	}
	return nil
}

// FileChangeRecord is the typed payload for envelope.PayloadFileChange.
type FileChangeRecord struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Op     string `json:"op"` // "create", "modify", "delete"
}

// ValidateFileChange checks the closed-set rules for a file-change record.
func ValidateFileChange(payload []byte) error {
	var r FileChangeRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed file_change payload: %w", err)
	}
	if r.Path == "" {
		return fmt.Errorf("probes: file_change record missing path")
	}
	switch r.Op {
	case "create", "modify", "delete":
	default:
		return fmt.Errorf("probes: file_change record has unrecognized op %q", r.Op)
	}
	if r.Op != "delete" && r.SHA256 != "" && !validSHA256Hex(r.SHA256) {
		return fmt.Errorf("probes: file_change record has malformed sha256")
	}
	return nil
}

// PeripheralRecord is the typed payload for envelope.PayloadPeripheral.
type PeripheralRecord struct {
	DeviceID  string `json:"device_id"`
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	Action    string `json:"action"` // "connect" or "disconnect"
}

// ValidatePeripheral checks the closed-set rules for a peripheral record.
func ValidatePeripheral(payload []byte) error {
	var r PeripheralRecord
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("probes: malformed peripheral payload: %w", err)
	}
	if r.DeviceID == "" {
		return fmt.Errorf("probes: peripheral record missing device_id")
	}
	switch r.Action {
	case "connect", "disconnect":
	default:
		return fmt.Errorf("probes: peripheral record has unrecognized action %q", r.Action)
	}
	return nil
}
