// Package gateway accepts inbound WebSocket upgrade requests and binds each
// one to a [session.Session].
package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/riftwave/voxgate/internal/session"
)

// SessionMetrics receives session lifecycle events for observability. A nil
// SessionMetrics is valid and records nothing.
type SessionMetrics interface {
	SessionOpened()
	SessionClosed()
}

// Acceptor implements C6: it upgrades inbound requests at a single path and
// runs a [session.Session] for the duration of the connection.
type Acceptor struct {
	engine  session.Engine
	metrics SessionMetrics
}

// New returns an Acceptor that binds every accepted connection to eng.
func New(eng session.Engine, metrics SessionMetrics) *Acceptor {
	return &Acceptor{engine: eng, metrics: metrics}
}

// ServeHTTP upgrades r to the duplex streaming protocol and runs a session
// for its lifetime. Non-upgrade requests receive a 400 response. The
// session is disposed before ServeHTTP returns.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(strings.ToLower(r.Header.Get("Upgrade")), "websocket") {
		http.Error(w, "expected a WebSocket upgrade request", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// websocket.Accept already wrote a 4xx response for the malformed
		// handshake.
		slog.Debug("gateway: upgrade rejected", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := session.New(conn, a.engine)
	defer sess.Dispose()

	if a.metrics != nil {
		a.metrics.SessionOpened()
		defer a.metrics.SessionClosed()
	}

	sess.Run(r.Context())
}

// Register adds the upgrade endpoint to mux.
func (a *Acceptor) Register(mux *http.ServeMux) {
	mux.Handle("GET /transcribe", a)
}
