package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/gateway/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8 << 20 // chat requests may carry an inline image
	maxPending     = 4
)

// Client is one websocket connection. Inbound text messages are queued and
// handled one at a time; outbound payloads go through a buffered channel
// drained by the write pump.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	requests chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	closed   bool
}

// NewClient wraps conn. The client's context carries the request and client
// ids for logging and is cancelled when the connection closes.
func NewClient(parent context.Context, conn *websocket.Conn, requestID, clientID string) *Client {
	ctx, cancel := context.WithCancel(log.WithRequest(context.WithoutCancel(parent), requestID, clientID))
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		requests: make(chan []byte, maxPending),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run starts the pumps; handle is called sequentially for every inbound
// text message.
func (c *Client) Run(handle func(ctx context.Context, message []byte)) {
	c.setupHandlers()

	go c.ping()
	go c.readPump()
	go c.writePump()
	go c.work(handle)
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close cancels the client context and closes the connection. It is safe to
// call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) ping() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		select {
		case c.requests <- message:
		case <-c.ctx.Done():
			return
		default:
			log.WithCtx(c.ctx).Warn("Dropping message, too many pending requests")
		}
	}
}

func (c *Client) work(handle func(ctx context.Context, message []byte)) {
	for {
		select {
		case message := <-c.requests:
			handle(c.ctx, message)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.Close()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues message for the write pump, waiting while the buffer
// is full.
func (c *Client) SendMessage(message []byte) error {
	if c.IsClosed() {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}
