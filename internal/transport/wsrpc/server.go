// Package wsrpc implements the bidirectional PublishStream transport over a
// gorilla/websocket connection layered on the same mTLS listener as
// httprpc, grounded on the teacher's pkg/agent/transport/websocket package
// (WSServer/Handler/handleConnection shape). As in httprpc, peer identity
// comes only from the verified mTLS certificate established at the
// underlying TLS connection, extracted once at upgrade time and reused for
// every frame on that connection — the teacher's per-field DID trust is not
// carried forward.
package wsrpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventbus-fabric/eventbus/internal/envelope"
	"github.com/eventbus-fabric/eventbus/internal/transport"
)

// IdentityExtractor resolves the calling peer's identity at upgrade time.
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

// Server accepts long-lived WebSocket connections, one per Agent, and
// dispatches every frame received on each to handler.
type Server struct {
	handler      transport.Handler
	identity     IdentityExtractor
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a Server.
func New(handler transport.Handler) *Server {
	return &Server{
		handler:  handler,
		identity: PeerCertCommonName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin checking is irrelevant here: the connection is
			// already mTLS-authenticated below the WebSocket layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 30 * time.Second,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// WithIdentityExtractor overrides the default mTLS-based identity
// extraction, primarily for tests run without a real TLS listener.
func (s *Server) WithIdentityExtractor(fn IdentityExtractor) *Server {
	s.identity = fn
	return s
}

// Handler returns the http.Handler to mount at /publish/stream.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerIdentity, ok := s.identity(r)
		if !ok {
			http.Error(w, "no verified peer certificate", http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.track(conn)
		defer s.untrack(conn)
		defer conn.Close()

		s.serveConn(r.Context(), peerIdentity, conn)
	})
}

func (s *Server) serveConn(ctx context.Context, peerIdentity string, conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}

		var wire transport.WireEnvelope
		if err := conn.ReadJSON(&wire); err != nil {
			return
		}

		e := transport.FromWireEnvelope(&wire)

		var ack *envelope.Ack
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					ack = &envelope.Ack{Status: envelope.StatusRetry, Reason: "internal_error"}
				}
			}()
			result, err := s.handler(ctx, peerIdentity, e)
			if err != nil {
				ack = &envelope.Ack{Status: envelope.StatusRetry, Reason: "handler_error"}
				return
			}
			ack = result
		}()

		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return
		}
		if err := conn.WriteJSON(transport.ToWireAck(ack)); err != nil {
			return
		}
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// ConnectionCount reports the number of active streams, for readiness/debug
// reporting.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close closes every tracked connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	return nil
}
