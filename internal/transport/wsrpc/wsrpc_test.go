package wsrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
)

func testEnvelope(key string) *envelope.Envelope {
	return &envelope.Envelope{
		Version:        envelope.Version,
		TimestampNS:    1,
		IdempotencyKey: key,
		SourceIdentity: "A1",
		Variant:        envelope.PayloadFlow,
		Payload:        []byte{1, 2, 3},
		Signature:      make([]byte, 64),
	}
}

func stubIdentity(identity string, ok bool) IdentityExtractor {
	return func(r *http.Request) (string, bool) { return identity, ok }
}

func dialTestServer(t *testing.T, srv *Server) *Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	client, err := Dial(context.Background(), wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishStreamRoundTripOK(t *testing.T) {
	var gotIdentity string
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		gotIdentity = peerIdentity
		return &envelope.Ack{Status: envelope.StatusOK}, nil
	}

	srv := New(handler).WithIdentityExtractor(stubIdentity("A1", true))
	client := dialTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ack, err := client.Publish(ctx, testEnvelope("k1"))
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack.Status)
	require.Equal(t, "A1", gotIdentity)
}

func TestPublishStreamSerializesMultipleEnvelopesOnOneConnection(t *testing.T) {
	seen := 0
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		seen++
		return &envelope.Ack{Status: envelope.StatusOK}, nil
	}

	srv := New(handler).WithIdentityExtractor(stubIdentity("A1", true))
	client := dialTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		ack, err := client.Publish(ctx, testEnvelope("k"))
		require.NoError(t, err)
		require.Equal(t, envelope.StatusOK, ack.Status)
	}
	require.Equal(t, 3, seen)
}

func TestUpgradeRejectedWithoutVerifiedPeer(t *testing.T) {
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		t.Fatal("handler must not be called without a verified peer identity")
		return nil, nil
	}

	srv := New(handler).WithIdentityExtractor(stubIdentity("", false))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerPanicBecomesRetryAck(t *testing.T) {
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		panic("boom")
	}

	srv := New(handler).WithIdentityExtractor(stubIdentity("A1", true))
	client := dialTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ack, err := client.Publish(ctx, testEnvelope("k1"))
	require.NoError(t, err)
	require.Equal(t, envelope.StatusRetry, ack.Status)
}
