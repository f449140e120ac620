package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type conn struct {
	ws        *websocket.Conn
	id        string
	sessionID string
	logger    *slog.Logger
	send      chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, id, sessionID string, logger *slog.Logger) *conn {
	return &conn{
		ws:        ws,
		id:        id,
		sessionID: sessionID,
		logger:    logger.With("connection_id", id, "session_id", sessionID),
		send:      make(chan *Message, sendBuffer),
		done:      make(chan struct{}),
	}
}

// Send queues msg for the write pump. A slow client loses messages rather
// than stalling analysis.
func (c *conn) Send(msg *Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *conn) SendData(t MessageType, data any) {
	msg, err := newMessage(t, data)
	if err != nil {
		c.logger.Error("failed to encode message", "type", t, "error", err)
		return
	}
	c.Send(msg)
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *conn) readPump(handle func(*Message)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("failed to unmarshal message", "error", err)
			c.SendData(TypeAnalysisError, ErrorPayload{Error: "invalid message"})
			continue
		}
		handle(&msg)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
