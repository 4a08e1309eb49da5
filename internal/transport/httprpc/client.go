package httprpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

// Client is the Agent-side unary RPC transport, grounded on the teacher's
// pkg/agent/transport/http.HTTPTransport.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ transport.RPC = (*Client)(nil)

// New creates a Client that POSTs envelopes to baseURL+"/publish" over a
// connection authenticated with tlsConfig's client certificate.
func New(baseURL string, tlsConfig *tls.Config) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}
}

// Publish implements transport.RPC.
func (c *Client) Publish(ctx context.Context, e *envelope.Envelope) (*envelope.Ack, error) {
	body, err := json.Marshal(transport.ToWireEnvelope(e))
	if err != nil {
		return nil, fmt.Errorf("httprpc: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/publish", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httprpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httprpc: do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httprpc: read response: %w", err)
	}

	var wireAck transport.WireAck
	if err := json.Unmarshal(respBody, &wireAck); err != nil {
		return nil, fmt.Errorf("httprpc: parse response: %w", err)
	}
	return transport.FromWireAck(&wireAck), nil
}

// Close implements transport.RPC.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
