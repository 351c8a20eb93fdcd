package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fieldops/backend/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced at the gin layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary Realtime event stream
// @Description Upgrades to a websocket. Clients send {"action":"subscribe","role":"admin"}
// @Description or {"action":"subscribe","role":"team","team_id":"..."} to scope their feed.
// @Tags realtime
// @Router /ws [get]
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := &realtime.Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, wsSendBuffer),
	}
	h.Hub.Register(client)

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

func (h *Handler) readPump(conn *websocket.Conn, client *realtime.Client) {
	defer func() {
		h.Hub.Unregister(client)
		conn.Close()
	}()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Debug().Err(err).Str("client", client.ID).Msg("websocket read")
			}
			return
		}
		if msg, ok := realtime.ParseSubscribe(data); ok {
			h.Hub.UpdateSubscription(client, realtime.Subscription{
				Admin:  msg.Role == "admin",
				TeamID: msg.TeamID,
			})
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *realtime.Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
