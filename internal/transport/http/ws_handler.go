package http

import (
	"log"
	"net/http"

	"imb-test-portal/internal/app"
	"imb-test-portal/internal/domain"

	"github.com/gorilla/websocket"
)

// WSHandler streams leaderboard snapshots to admin clients so the
// submissions table stays live without polling.
type WSHandler struct {
	service  *app.PortalService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PortalService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and forwards every leaderboard update until
// the client disconnects. Privilege checks fail closed: anything other than
// a configured admin email is rejected before the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}
	if !h.service.IsAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context())
	if err != nil {
		log.Printf("ws subscribe failed: %v", err)
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine only watches for the client going away; inbound
	// payloads are ignored.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
