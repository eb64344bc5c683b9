package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
)

const (
	// pongWait allows two or three missed heartbeats before the read fails
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = int64(4 << 10)
)

// client is one live websocket connection bound to a uid for its lifetime and
// subscribed to the hub for its lifetime.
type client struct {
	logger *zap.SugaredLogger
	gw     *gateway
	conn   *websocket.Conn
	uid    string
	sub    *broker.Subscriber
}

// readPump processes inbound frames in arrival order. On exit the connection
// is unsubscribed and the presence tracker observes the disconnect.
func (c *client) readPump() {
	defer func() {
		c.gw.hub.Unsubscribe(c.sub)
		c.gw.presence.Disconnected(context.Background(), c.uid, c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Infof("Reading from %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}

		c.gw.handleFrame(c, raw)
	}
}

// writePump drains the subscriber channel onto the wire and keeps the
// connection alive with pings. It exits when the subscription is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(wsFrame{Event: msg.Event, Data: msg.Data}); err != nil {
				c.logger.Infof("Writing to %s: %v", c.conn.RemoteAddr(), err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
