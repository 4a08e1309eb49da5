// Package httprpc implements the unary Publish transport over HTTPS with
// mTLS client-certificate authentication, grounded on the teacher's
// pkg/agent/transport/http package (HTTPServer/MessagesHandler shape: parse
// JSON body, call an application handler, always reply HTTP 200 with
// success/error folded into the body). The identity trust boundary is
// changed from the teacher's client-supplied X-SAGE-DID header to the
// common name of the verified mTLS peer certificate — a header is
// attacker-controlled, the TLS handshake's PeerCertificates are not.
package httprpc

import (
	"crypto/tls"
	"encoding/json"
	"net/http"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

// IdentityExtractor resolves the calling peer's identity from an inbound
// request. The default, PeerCertCommonName, trusts only the verified mTLS
// certificate chain; tests may substitute a stub.
type IdentityExtractor func(r *http.Request) (string, bool)

// PeerCertCommonName extracts the identity from the CN of the first
// certificate in the verified client certificate chain.
func PeerCertCommonName(r *http.Request) (string, bool) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return "", false
	}
	cn := r.TLS.PeerCertificates[0].Subject.CommonName
	if cn == "" {
		return "", false
	}
	return cn, true
}

// Server exposes a Publish handler over HTTP POST /publish.
type Server struct {
	handler   transport.Handler
	identity  IdentityExtractor
	tlsConfig *tls.Config
}

// New creates a Server. tlsConfig should require and verify client
// certificates (tls.RequireAndVerifyClientCert) when served over TLS; it is
// retained only for callers that want Server to build their own
// *http.Server via ListenAndServeTLS-style wiring in cmd/eventbus.
func New(handler transport.Handler, tlsConfig *tls.Config) *Server {
	return &Server{handler: handler, identity: PeerCertCommonName, tlsConfig: tlsConfig}
}

// WithIdentityExtractor overrides the default mTLS-based identity
// extraction, primarily for tests run without a real TLS listener.
func (s *Server) WithIdentityExtractor(fn IdentityExtractor) *Server {
	s.identity = fn
	return s
}

// TLSConfig returns the TLS configuration this server was constructed with.
func (s *Server) TLSConfig() *tls.Config {
	return s.tlsConfig
}

// Handler returns the http.Handler to mount at /publish.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.servePublish)
}

func (s *Server) servePublish(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			writeAck(w, &envelope.Ack{Status: envelope.StatusRetry, Reason: "internal_error"})
		}
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	peerIdentity, ok := s.identity(r)
	if !ok {
		writeAck(w, &envelope.Ack{Status: envelope.StatusUnauthorized, Reason: "no_verified_peer_certificate"})
		return
	}

	var wire transport.WireEnvelope
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeAck(w, &envelope.Ack{Status: envelope.StatusInvalid, Reason: "malformed_body"})
		return
	}

	e := transport.FromWireEnvelope(&wire)
	ack, err := s.handler(r.Context(), peerIdentity, e)
	if err != nil {
		writeAck(w, &envelope.Ack{Status: envelope.StatusRetry, Reason: "handler_error"})
		return
	}
	writeAck(w, ack)
}

func writeAck(w http.ResponseWriter, ack *envelope.Ack) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(transport.ToWireAck(ack))
}
