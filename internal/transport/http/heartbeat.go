package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mcq-contest-service/internal/app"
)

// Heartbeat keeps a websocket open per logged-in client. Pings refresh the
// session's activity stamp, and when the session is revoked (a login from
// another device, an admin revoke, or the inactivity sweep) the client is
// told before the connection closes so it can return to the login screen.
type Heartbeat struct {
	auth          *app.AuthService
	upgrader      websocket.Upgrader
	checkInterval time.Duration
}

func NewHeartbeat(auth *app.AuthService) *Heartbeat {
	return &Heartbeat{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		checkInterval: 15 * time.Second,
	}
}

type heartbeatInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type heartbeatOutbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// trySend enqueues a frame unless the writer has already exited. Without the
// writerDone escape a client that keeps talking on a half-dead socket would
// wedge the read loop once the send buffer fills.
func trySend(send chan<- heartbeatOutbound, writerDone <-chan struct{}, msg heartbeatOutbound) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *Heartbeat) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	if _, err := h.auth.VerifySession(r.Context(), sessionID); err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan heartbeatOutbound, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	checkerDone := make(chan struct{})

	// the writer owns the connection teardown so a final session_ended
	// frame is flushed before the close
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
			if msg.Type == "session_ended" {
				conn.Close()
				return
			}
		}
	}()

	// The checker re-verifies the session on an interval. The moment the
	// session no longer verifies, the client gets one session_ended frame
	// and the connection is torn down.
	go func() {
		defer close(checkerDone)
		ticker := time.NewTicker(h.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := h.auth.VerifySession(r.Context(), sessionID); err != nil {
					select {
					case send <- heartbeatOutbound{Type: "session_ended"}:
					case <-writerDone:
					case <-closeSignals:
					}
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound heartbeatInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var out heartbeatOutbound
		switch inbound.Type {
		case "ping":
			if err := h.auth.TouchActivity(r.Context(), sessionID); err != nil {
				out = heartbeatOutbound{Type: "session_ended"}
			} else {
				out = heartbeatOutbound{Type: "pong"}
			}
		default:
			out = heartbeatOutbound{Type: "error", Payload: map[string]string{"message": "unsupported message type"}}
		}
		if !trySend(send, writerDone, out) {
			break
		}
	}

	close(closeSignals)
	<-checkerDone
	close(send)
	<-writerDone
}
