// Package wsapi streams a session's ChatEvents to WebSocket clients and
// accepts chat submissions over the same connection. Grounded on
// codeready-toolchain-tarsy's pkg/api/websocket.go (gorilla/websocket
// Upgrader, a register/unregister/broadcast hub, a read loop tolerating
// client pings), adapted from one global broadcast hub to ragmux's
// per-session eventbus.Bus subscription and from a broadcast-only hub to
// one that also accepts inbound chat requests and forwards them to
// manager.Manager.
package wsapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ragmux/internal/eventbus"
	"ragmux/internal/manager"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inboundMessage is one client-to-server frame on the chat socket.
type inboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
}

// Handler upgrades HTTP connections to WebSocket and wires them to the
// event bus and the manager.
type Handler struct {
	bus     *eventbus.Bus
	manager *manager.Manager
}

// New builds a Handler.
func New(bus *eventbus.Bus, mgr *manager.Manager) *Handler {
	return &Handler{bus: bus, manager: mgr}
}

// ServeSession handles GET /ws/sessions/{sessionID}: the client receives
// every ChatEvent published for that session, and can submit a new chat
// message by sending {"type":"chat","query":"..."} back over the same
// connection.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(sessionID)
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go h.readLoop(r, conn, sessionID, done)

	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) readLoop(r *http.Request, conn *websocket.Conn, sessionID string, done chan<- struct{}) {
	defer close(done)
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Ctx(r.Context()).Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		case "chat":
			if msg.SessionID == "" {
				msg.SessionID = sessionID
			}
			go func(m inboundMessage) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if _, err := h.manager.Handle(ctx, manager.ChatRequest{
					SessionID: m.SessionID, UserID: m.UserID, Query: m.Query,
				}); err != nil {
					log.Ctx(r.Context()).Warn().Err(err).Msg("ws chat handling failed")
				}
			}(msg)
		}
	}
}
