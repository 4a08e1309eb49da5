package agent

import (
	"encoding/json"
	"fmt"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

// marshalEnvelope and unmarshalEnvelope persist an Envelope in the WAL using
// the same wire JSON shape the RPC transports exchange, so a WAL record
// dump and a captured request frame are interchangeable for debugging.
func marshalEnvelope(e *envelope.Envelope) ([]byte, error) {
	raw, err := json.Marshal(transport.ToWireEnvelope(e))
	if err != nil {
		return nil, fmt.Errorf("agent: marshal wire envelope: %w", err)
	}
	return raw, nil
}

func unmarshalEnvelope(raw []byte) (*envelope.Envelope, error) {
	var w transport.WireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("agent: unmarshal wire envelope: %w", err)
	}
	return transport.FromWireEnvelope(&w), nil
}
