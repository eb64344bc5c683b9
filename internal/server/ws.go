package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
	"github.com/Mejerab/Unoo-Chats-Server/internal/history"
	"github.com/Mejerab/Unoo-Chats-Server/internal/presence"
	"github.com/gorilla/websocket"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// gateway upgrades inbound websocket connections, subscribes each one to the
// broker hub and relays its events to the core components.
type gateway struct {
	logger   *zap.SugaredLogger
	hub      *broker.Hub
	history  *history.Service
	presence *presence.Tracker
	upgrader websocket.Upgrader
	frames   fastjson.ParserPool
}

func newGateway(logger *zap.SugaredLogger, hub *broker.Hub, hist *history.Service, pres *presence.Tracker) *gateway {
	return &gateway{
		logger:   logger,
		hub:      hub,
		history:  hist,
		presence: pres,
		upgrader: websocket.Upgrader{
			// every origin is served, mirroring the open CORS policy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// handleWS handles websocket handshakes on "GET /ws" endpoint. The uid query
// parameter identifies the user; a connection without uid stays open for chat
// events but performs no presence transitions.
func (g *gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Errorf("upgrading connection: %v", err)
		return
	}

	sub := g.hub.Subscribe()
	if sub == nil {
		// hub already closed, shutting down
		conn.Close()
		return
	}

	c := &client{
		logger: g.logger,
		gw:     g,
		conn:   conn,
		uid:    uid,
		sub:    sub,
	}

	if uid == "" {
		g.logger.Info("Id not provided on handshake, connection stays open without presence")
	} else {
		g.presence.Connected(context.Background(), uid, sub)
	}

	go c.writePump()
	c.readPump()
}

// wsFrame is the wire shape of every realtime event in both directions.
type wsFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// handleFrame dispatches one inbound frame from a client.
func (g *gateway) handleFrame(c *client, raw []byte) {
	parser := g.frames.Get()
	defer g.frames.Put(parser)

	v, err := parser.ParseBytes(raw)
	if err != nil {
		g.logger.Infof("Malformed frame from %s: %v", c.conn.RemoteAddr(), err)
		return
	}

	event := string(v.GetStringBytes("event"))
	switch event {
	case broker.EventChats:
		data := v.Get("data")
		if data == nil || data.Type() != fastjson.TypeObject {
			g.logger.Infof("chats frame without object payload from %s", c.conn.RemoteAddr())
			return
		}

		var fields map[string]interface{}
		if err := json.Unmarshal(data.MarshalTo(nil), &fields); err != nil {
			g.logger.Infof("Decoding chats payload: %v", err)
			return
		}

		g.history.Append(context.Background(), fields)

	case "logoutUser":
		uid := string(v.GetStringBytes("data"))
		if uid == "" {
			uid = c.uid
		}
		g.presence.Logout(context.Background(), uid, c.sub)
		// explicit logout forcibly terminates the connection
		c.conn.Close()

	default:
		g.logger.Infof("Unknown event %q from %s", event, c.conn.RemoteAddr())
	}
}
