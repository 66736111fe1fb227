package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stevehere/ethdrop-relay/core"
	"github.com/stevehere/ethdrop-relay/service"
)

// Handler upgrades websocket requests and drives each connection's read loop.
type Handler struct {
	svc      *service.RelayService
	upgrader websocket.Upgrader
}

// NewHandler creates a new websocket handler
func NewHandler(svc *service.RelayService) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Wallet sign-in is the authentication; origin is not.
				return true
			},
		},
	}
}

// Serve upgrades the request and hands the connection to the protocol.
func (h *Handler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	conn := newConn(ws)
	peer := h.svc.NewPeer(conn)

	// Armed once at connection start; nonce requests do not reset it.
	timer := time.AfterFunc(h.svc.LoginGrace(), func() {
		if !peer.SignedIn() {
			_ = conn.Close(core.CloseLoginTimeout, "Client Error - Waited too long to sign in.")
		}
	})

	go h.readLoop(conn, ws, peer, timer)
}

func (h *Handler) readLoop(conn *Conn, ws *websocket.Conn, peer *service.Peer, timer *time.Timer) {
	// The request context dies with the HTTP handler; the hijacked socket
	// outlives it.
	ctx := context.Background()

	defer func() {
		timer.Stop()
		h.svc.Disconnect(ctx, peer)
		_ = conn.Close(websocket.CloseNormalClosure, "")
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.svc.HandleFrame(ctx, peer, raw)
	}
}
