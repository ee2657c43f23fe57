package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is one browser socket.
type Client struct {
	id         string
	operatorID uuid.UUID
	conn       *websocket.Conn
	send       chan []byte
	limiter    *rate.Limiter
	hub        *Hub
}

// enqueue must be called with the hub lock held so send is never closed
// underneath it.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.hub.logger.Warn("client send buffer full, dropping frame", zap.String("connection_id", c.id))
	}
}

func (c *Client) reply(msgType string, data interface{}) {
	frame, err := encode(msgType, data)
	if err != nil {
		c.hub.logger.Error("failed to encode frame", zap.String("type", msgType), zap.Error(err))
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; ok {
		c.enqueue(frame)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.metrics.HubMessages.WithLabelValues("rate_limited").Inc()
			c.reply(TypeError, ErrorPayload{Message: "rate limited"})
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(TypeError, ErrorPayload{Message: "invalid message"})
			continue
		}
		c.hub.handleMessage(context.Background(), c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
