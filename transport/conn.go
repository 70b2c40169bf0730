package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/asset-tracking/subscription"
)

// controlMessage is what observers send over the socket.
type controlMessage struct {
	Action         string `json:"action"`
	AssetType      string `json:"assetType,omitempty"`
	AssetID        string `json:"assetId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// controlReply acknowledges a control message.
type controlReply struct {
	Type           string              `json:"type"`
	SubscriptionID string              `json:"subscriptionId,omitempty"`
	Topic          *subscription.Topic `json:"topic,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Conn is one observer connection. The hub holds the handle; subscription
// state lives in the registry only.
type Conn struct {
	id       string
	identity Identity
	ws       *websocket.Conn
	hub      *Hub

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newConn(id string, identity Identity, ws *websocket.Conn, hub *Hub) *Conn {
	bufSize := hub.opts.SendBuffer
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Conn{
		id:       id,
		identity: identity,
		ws:       ws,
		hub:      hub,
		send:     make(chan []byte, bufSize),
		done:     make(chan struct{}),
	}
}

// enqueue buffers an outbound frame without blocking the fan-out loop.
// When the buffer is full the oldest frame is dropped in favor of the
// newest; the connection stays alive. Returns the number of drops.
func (c *Conn) enqueue(data []byte) uint64 {
	select {
	case c.send <- data:
		return 0
	default:
	}
	var dropped uint64
	select {
	case <-c.send:
		dropped++
	default:
	}
	select {
	case c.send <- data:
	default:
		dropped++
	}
	return dropped
}

// readPump consumes control messages and enforces the heartbeat read
// deadline. Any read error ends the connection.
func (c *Conn) readPump() {
	defer c.close()
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.HeartbeatTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.HeartbeatTimeout))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.HeartbeatTimeout))
		c.handleControl(data)
	}
}

func (c *Conn) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(controlReply{Type: "error", Error: "malformed control message"})
		return
	}
	switch msg.Action {
	case "subscribe":
		topic := subscription.Topic{AssetType: msg.AssetType, AssetID: msg.AssetID}
		sub, err := c.hub.registry.Subscribe(c.id, topic)
		if err != nil {
			c.reply(controlReply{Type: "error", Error: err.Error()})
			return
		}
		c.reply(controlReply{Type: "subscribed", SubscriptionID: sub.ID, Topic: &sub.Topic})
	case "unsubscribe":
		if !c.hub.registry.Unsubscribe(msg.SubscriptionID) {
			c.reply(controlReply{Type: "error", Error: "unknown subscription"})
			return
		}
		c.reply(controlReply{Type: "unsubscribed", SubscriptionID: msg.SubscriptionID})
	default:
		c.reply(controlReply{Type: "error", Error: "unknown action: " + msg.Action})
	}
}

// reply enqueues an acknowledgment on the same outbound path as events, so
// acks and pushes stay ordered.
func (c *Conn) reply(r controlReply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// writePump drains the outbound buffer and runs the ping cycle.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.opts.HeartbeatInterval)
	defer ticker.Stop()
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the connection down: registry cleanup first, so no event
// published afterwards can reach this connection.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.hub.remove(c)
		close(c.done)
		_ = c.ws.Close()
	})
}
