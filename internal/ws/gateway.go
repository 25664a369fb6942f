// Package ws bridges browser clients onto the arena: each WebSocket text
// message carries exactly one protocol frame, so a session behaves the
// same here as over the raw TCP port.
package ws

import (
	"log"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/playduel/backend/internal/arena"
	"github.com/playduel/backend/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the router level
	},
}

// wsConn adapts one WebSocket connection to the framed connection the
// arena reads from.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, net.ErrClosed
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteFrame(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// HandleGateway upgrades the request and runs a full arena session over it.
func HandleGateway(hub *arena.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		conn.SetReadLimit(wire.MaxFrameSize)

		go arena.NewSession(hub, &wsConn{conn: conn}).Run()
	}
}
