package probes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
)

func TestValidateFlowAcceptsWellFormedRecord(t *testing.T) {
	payload, _ := json.Marshal(FlowRecord{
		SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 443, DstPort: 51000, Protocol: "tcp", Bytes: 1024,
	})
	assert.NoError(t, ValidateFlow(payload))
}

func TestValidateFlowRejectsBadIP(t *testing.T) {
	payload, _ := json.Marshal(FlowRecord{SrcIP: "not-an-ip", DstIP: "10.0.0.2", Protocol: "tcp"})
	assert.Error(t, ValidateFlow(payload))
}

func TestValidateFlowRejectsOutOfRangePort(t *testing.T) {
	payload, _ := json.Marshal(FlowRecord{SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 70000, Protocol: "tcp"})
	assert.Error(t, ValidateFlow(payload))
}

func TestValidateProcessRequiresPositivePID(t *testing.T) {
	payload, _ := json.Marshal(ProcessRecord{PID: 0, Name: "sshd", ExePath: "/usr/sbin/sshd"})
	assert.Error(t, ValidateProcess(payload))
}

func TestValidateProcessAcceptsValidSHA256(t *testing.T) {
	sha := "a3f5c1e8b9d2047c6e1a8f3b2d4c5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d"
	payload, _ := json.Marshal(ProcessRecord{PID: 100, Name: "bash", ExePath: "/bin/bash", SHA256: sha})
	assert.NoError(t, ValidateProcess(payload))
}

func TestValidateProcessRejectsMalformedSHA256(t *testing.T) {
	payload, _ := json.Marshal(ProcessRecord{PID: 100, Name: "bash", ExePath: "/bin/bash", SHA256: "not-hex"})
	assert.Error(t, ValidateProcess(payload))
}

func TestValidateAuthRequiresUserAndMethod(t *testing.T) {
	payload, _ := json.Marshal(AuthRecord{User: "", Method: "password"})
	assert.Error(t, ValidateAuth(payload))

	payload, _ = json.Marshal(AuthRecord{User: "root", Method: ""})
	assert.Error(t, ValidateAuth(payload))

	payload, _ = json.Marshal(AuthRecord{User: "root", Method: "password", SourceIP: "192.168.1.1"})
	assert.NoError(t, ValidateAuth(payload))
}

func TestValidateDNSRejectsMalformedDomain(t *testing.T) {
	payload, _ := json.Marshal(DNSRecord{Query: "not a domain!!", QType: "A"})
	assert.Error(t, ValidateDNS(payload))
}

func TestValidateDNSAcceptsWellFormedRecord(t *testing.T) {
	payload, _ := json.Marshal(DNSRecord{Query: "example.com", QType: "A", ResponseIPs: []string{"93.184.216.34"}})
	assert.NoError(t, ValidateDNS(payload))
}

func TestValidateDNSRejectsInvalidResponseIP(t *testing.T) {
	payload, _ := json.Marshal(DNSRecord{Query: "example.com", QType: "A", ResponseIPs: []string{"not-an-ip"}})
	assert.Error(t, ValidateDNS(payload))
}

func TestValidateFileChangeRejectsUnknownOp(t *testing.T) {
	payload, _ := json.Marshal(FileChangeRecord{Path: "/etc/passwd", Op: "rename"})
	assert.Error(t, ValidateFileChange(payload))
}

func TestValidateFileChangeAcceptsDeleteWithoutSHA(t *testing.T) {
	payload, _ := json.Marshal(FileChangeRecord{Path: "/etc/passwd", Op: "delete"})
	assert.NoError(t, ValidateFileChange(payload))
}

func TestValidatePeripheralRejectsUnknownAction(t *testing.T) {
	payload, _ := json.Marshal(PeripheralRecord{DeviceID: "usb-1", Action: "unplugged"})
	assert.Error(t, ValidatePeripheral(payload))
}

func TestValidatePeripheralAcceptsConnect(t *testing.T) {
	payload, _ := json.Marshal(PeripheralRecord{DeviceID: "usb-1", VendorID: "0x0781", ProductID: "0x5567", Action: "connect"})
	assert.NoError(t, ValidatePeripheral(payload))
}

func TestValidatorsMapCoversEveryVariant(t *testing.T) {
	for _, v := range []string{"flow", "process", "auth", "dns", "file_change", "peripheral"} {
		_, ok := Validators[envelope.PayloadVariant(v)]
		assert.True(t, ok, "no validator registered for variant %q", v)
	}
	assert.Len(t, Validators, 6)
}
