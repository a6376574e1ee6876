// Package wsbridge implements chat.Transport over a WebSocket connection to a
// chat-bridge gateway that holds the actual user session. Calls are JSON
// requests matched to responses by ID.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/ostrobot/internal/chat"
)

// ErrClosed is returned by calls made after the connection has gone away.
var ErrClosed = errors.New("wsbridge: connection closed")

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Message history replies can be large
	maxMessageSize = 1 << 20
)

// Options tune the client.
type Options struct {
	// RequestTimeout bounds each call; zero relies on the caller's context.
	RequestTimeout time.Duration
	Header         http.Header
}

// Client is a gateway connection. Dial it, start Run, then use it as a
// chat.Transport from any goroutine.
type Client struct {
	conn   *websocket.Conn
	send   chan *Request
	logger *log.Logger
	opts   Options

	mu      sync.Mutex
	pending map[string]chan *Response
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the gateway. http and https URLs are mapped to ws and wss.
func Dial(ctx context.Context, rawURL string, logger *log.Logger, opts Options) (*Client, error) {
	logger = logger.WithPrefix("wsbridge")
	logger.Info("Connecting to gateway", "url", rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("Connected to gateway")
	return &Client{
		conn:    conn,
		send:    make(chan *Request, 64),
		logger:  logger,
		opts:    opts,
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}, nil
}

// Run pumps the connection until ctx is done or the connection fails. It
// returns nil when ctx ended it.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(c.readPump)
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		c.shutdown()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close tears the connection down; pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)

		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close() // Ignore close errors during shutdown
		c.logger.Info("Disconnected from gateway")
	})
}

func (c *Client) readPump() error {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Response for unknown request", "id", resp.ID)
			continue
		}
		select {
		case ch <- &resp:
		default:
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case req := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(req); err != nil {
				c.logger.Error("Failed to write request", "method", req.Method, "error", err)
				return fmt.Errorf("write: %w", err)
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req, err := NewRequest(method, params)
	if err != nil {
		return err
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	select {
	case c.send <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Client) SendText(ctx context.Context, chatName, text string) error {
	return c.call(ctx, MethodSendText, SendTextParams{Chat: chatName, Text: text}, nil)
}

func (c *Client) FetchRecent(ctx context.Context, chatName string, limit int) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.call(ctx, MethodFetchRecent, FetchRecentParams{Chat: chatName, Limit: limit}, &msgs); err != nil {
		return nil, err
	}
	// Gateways send labels only; coordinates come from the grid position.
	for i := range msgs {
		msgs[i].Buttons = chat.Grid(msgs[i].Buttons...)
	}
	return msgs, nil
}

func (c *Client) Click(ctx context.Context, msg chat.Message, row, col int) error {
	return c.call(ctx, MethodClick, ClickParams{Chat: msg.Chat, MessageID: msg.ID, Row: row, Col: col}, nil)
}

var _ chat.Transport = (*Client)(nil)
