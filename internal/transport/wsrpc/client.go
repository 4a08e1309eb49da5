package wsrpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

// Client is the Agent-side long-lived PublishStream transport.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ transport.RPC = (*Client)(nil)

// Dial establishes the WebSocket connection (wrapped in a TLS handshake
// presenting the client certificate in tlsConfig) to url, e.g.
// "wss://bus.example.com/publish/stream".
func Dial(ctx context.Context, url string, tlsConfig *tls.Config) (*Client, error) {
	dialer := &websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsrpc: dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish implements transport.RPC: sends one envelope frame and waits for
// the matching ack frame on the same connection. The drain loop calls this
// serially, so request/response interleaving on one connection is never a
// concern here.
func (c *Client) Publish(ctx context.Context, e *envelope.Envelope) (*envelope.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	}

	if err := c.conn.WriteJSON(transport.ToWireEnvelope(e)); err != nil {
		return nil, fmt.Errorf("wsrpc: write: %w", err)
	}

	var wireAck transport.WireAck
	if err := c.conn.ReadJSON(&wireAck); err != nil {
		return nil, fmt.Errorf("wsrpc: read: %w", err)
	}
	return transport.FromWireAck(&wireAck), nil
}

// Close implements transport.RPC.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
