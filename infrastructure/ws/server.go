package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests and serves one Connection per socket.
type Handler struct {
	dispatcher *Dispatcher
	verifier   auth.TokenVerifier
	opts       Options
	metrics    *observability.Metrics
	log        *slog.Logger
	upgrader   websocket.Upgrader
	conns      sync.Map // connection id -> *Connection
}

func NewHandler(dispatcher *Dispatcher, verifier auth.TokenVerifier, opts Options, metrics *observability.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		verifier:   verifier,
		opts:       opts,
		metrics:    metrics,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the front-end origin, access is decided by the token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.Authenticate(h.verifier, r)
	if err != nil {
		h.log.Debug("Handshake refused", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newConnection(uuid.NewString(), userID, socket, h.opts, h.metrics, h.log)
	h.conns.Store(conn.ID(), conn)
	h.metrics.ConnectionOpened()
	defer func() {
		h.conns.Delete(conn.ID())
		h.metrics.ConnectionClosed()
	}()

	h.log.Debug("Connection opened", "connection_id", conn.ID(), "remote_addr", r.RemoteAddr)
	_ = conn.Send(event.New(event.Me, conn.ID()))
	conn.serve(auth.WithUserID(r.Context(), userID), h.dispatcher)
	h.log.Debug("Connection closed", "connection_id", conn.ID())
}

// CloseAll closes every live connection, hijacked sockets are not tracked by http.Server.
func (h *Handler) CloseAll() {
	h.conns.Range(func(_, v any) bool {
		v.(*Connection).Close()
		return true
	})
}
