// Package transport defines the transport-agnostic RPC surface between
// Agent and EventBus (SPEC_FULL.md §6), mirroring the teacher's
// pkg/agent/transport.MessageTransport abstraction: application code
// programs against RPC and Handler, while httprpc and wsrpc provide the two
// concrete wire implementations.
package transport

import (
	"context"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
)

// RPC is the client-side surface the Agent's drain loop publishes through.
// Implementations are transport-agnostic: the caller does not know or care
// whether envelopes cross the wire as unary HTTP POSTs or frames on a
// long-lived WebSocket.
type RPC interface {
	// Publish sends one signed envelope and returns the Bus's ack. A
	// non-nil error indicates a transport failure (connection refused,
	// timeout, TLS handshake failure); a nil error with a non-OK Ack
	// status indicates the Bus itself rejected the envelope.
	Publish(ctx context.Context, e *envelope.Envelope) (*envelope.Ack, error)

	Close() error
}

// Handler is the server-side application callback invoked once per
// received envelope, after the transport has extracted the caller's
// mTLS peer identity but before any validation.
type Handler func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error)

// PeerIdentityUnset is the empty peer identity. The default identity
// extraction strategy is PeerCertCommonName in httprpc and wsrpc: the CN of
// the first certificate in the verified mTLS chain, matching the teacher's
// convention (elsewhere trusting an X-SAGE-DID header) generalized here to
// trust only what TLS itself has verified rather than a client-supplied
// header.
const PeerIdentityUnset = ""
