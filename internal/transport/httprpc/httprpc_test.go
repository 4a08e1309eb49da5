package httprpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

func testEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		Version:        envelope.Version,
		TimestampNS:    1,
		IdempotencyKey: "k1",
		SourceIdentity: "A1",
		Variant:        envelope.PayloadFlow,
		Payload:        []byte{1, 2, 3},
		Signature:      make([]byte, 64),
	}
}

func stubIdentity(identity string, ok bool) IdentityExtractor {
	return func(r *http.Request) (string, bool) { return identity, ok }
}

func TestPublishRoundTripOK(t *testing.T) {
	var gotIdentity string
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		gotIdentity = peerIdentity
		require.Equal(t, "k1", e.IdempotencyKey)
		return &envelope.Ack{Status: envelope.StatusOK}, nil
	}

	srv := New(handler, nil).WithIdentityExtractor(stubIdentity("A1", true))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := New(ts.URL, nil)
	ack, err := client.Publish(context.Background(), testEnvelope())
	require.NoError(t, err)
	require.Equal(t, envelope.StatusOK, ack.Status)
	require.Equal(t, "A1", gotIdentity)
}

func TestPublishUnauthorizedWithoutVerifiedPeer(t *testing.T) {
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		t.Fatal("handler must not be called without a verified peer identity")
		return nil, nil
	}

	srv := New(handler, nil).WithIdentityExtractor(stubIdentity("", false))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := New(ts.URL, nil)
	ack, err := client.Publish(context.Background(), testEnvelope())
	require.NoError(t, err)
	require.Equal(t, envelope.StatusUnauthorized, ack.Status)
}

func TestPublishHandlerPanicBecomesRetry(t *testing.T) {
	handler := func(ctx context.Context, peerIdentity string, e *envelope.Envelope) (*envelope.Ack, error) {
		panic("boom")
	}

	srv := New(handler, nil).WithIdentityExtractor(stubIdentity("A1", true))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := New(ts.URL, nil)
	ack, err := client.Publish(context.Background(), testEnvelope())
	require.NoError(t, err)
	require.Equal(t, envelope.StatusRetry, ack.Status)
}

func TestWireRoundTripPreservesFields(t *testing.T) {
	e := testEnvelope()
	w := transport.ToWireEnvelope(e)
	back := transport.FromWireEnvelope(w)
	require.Equal(t, e, back)
}
