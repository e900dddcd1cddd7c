package host

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBuffer = 32
)

// client is one websocket connection playing the human seat.
type client struct {
	host   *Host
	conn   *websocket.Conn
	send   chan *Message
	logger *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(h *Host, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		host:   h,
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		logger: h.logger.With("remote", conn.RemoteAddr().String()),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *client) start() {
	go c.writePump()
	go c.readPump()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// enqueue queues msg without blocking. A snapshot may be dropped when the
// buffer is full since a newer one always follows the next change.
func (c *client) enqueue(msg *Message) {
	select {
	case <-c.ctx.Done():
	case c.send <- msg:
	default:
		if msg.Type == MessageTypeSnapshot {
			c.logger.Debug("Send buffer full, dropping snapshot")
			return
		}
		c.logger.Warn("Send buffer full, closing connection")
		c.close()
	}
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		c.handle(&msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *client) handle(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	var err error
	switch msg.Type {
	case MessageTypeAction:
		var data ActionData
		if json.Unmarshal(msg.Data, &data) != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse action")
			return
		}
		err = c.host.act(data)
	case MessageTypeReady:
		err = c.host.session.Ready()
	case MessageTypeMulligan:
		var data MulliganData
		if len(msg.Data) > 0 && json.Unmarshal(msg.Data, &data) != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse mulligan")
			return
		}
		err = c.host.session.Mulligan(data.Indexes)
	case MessageTypeNextHand:
		err = c.host.session.NextHand()
	default:
		c.sendError(msg.RequestID, "unknown_type", "unknown message type "+string(msg.Type))
		return
	}

	if err != nil {
		c.sendError(msg.RequestID, "rejected", err.Error())
		return
	}
	c.reply(msg.RequestID, MessageTypeAck, nil)
}

func (c *client) sendError(requestID, code, text string) {
	c.reply(requestID, MessageTypeError, ErrorData{Code: code, Message: text})
}

func (c *client) reply(requestID string, t MessageType, data any) {
	msg, err := newMessage(t, data, c.host.clock.Now())
	if err != nil {
		c.logger.Error("Failed to encode reply", "type", t, "err", err)
		return
	}
	msg.RequestID = requestID
	c.enqueue(msg)
}
