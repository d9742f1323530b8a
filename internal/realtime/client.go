package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/config"
)

// Client is a middleman between the websocket connection and the coordinator.
type Client struct {
	id          string
	conn        *websocket.Conn
	coordinator *Coordinator
	cfg         config.RealtimeConfig
	logger      *zap.Logger

	// Buffered channel of outbound frames.
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient creates a new Client.
func NewClient(conn *websocket.Conn, coordinator *Coordinator, cfg config.RealtimeConfig, logger *zap.Logger) *Client {
	id := uuid.NewString()
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:          id,
		conn:        conn,
		coordinator: coordinator,
		cfg:         cfg,
		logger:      logger.With(zap.String("conn_id", id)),
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// ID implements Conn.
func (c *Client) ID() string {
	return c.id
}

// Send implements Conn. A full buffer drops the frame instead of blocking the caller.
func (c *Client) Send(frame Frame) bool {
	raw, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("failed to encode frame", zap.String("event", frame.Event), zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- raw:
		return true
	default:
		c.logger.Warn("send buffer full, dropping frame", zap.String("event", frame.Event))
		return false
	}
}

// Start runs the pumps. It returns immediately.
func (c *Client) Start(ctx context.Context) {
	c.coordinator.Connect(c)
	go c.writePump()
	go c.readPump(ctx)
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump decodes frames and hands them to the coordinator. Commands from one
// connection are handled one at a time, in arrival order.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.close()
		c.coordinator.Disconnect(context.WithoutCancel(ctx), c)
		c.conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		cmd, err := DecodeCommand(message)
		if err != nil {
			c.Send(errorFrame(err))
			continue
		}
		_ = c.coordinator.Handle(ctx, c, cmd)
	}
}

// writePump is the only writer on the connection. Each frame goes out as its
// own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
