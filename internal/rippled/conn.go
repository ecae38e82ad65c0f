package rippled

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Binary ledgers with their transactions can be several megabytes.
const maxMessageSize = 64 << 20

const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")

// conn is one websocket connection to a rippled server. Requests are matched
// to responses by id; other messages go to the stream channel when it is set.
type conn struct {
	url string
	ws  *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan envelope
	err     error

	stream    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func dial(ctx context.Context, url string, pingInterval time.Duration, stream chan []byte) (*conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &conn{
		url:     url,
		ws:      ws,
		pending: make(map[uint64]chan envelope),
		stream:  stream,
		done:    make(chan struct{}),
	}

	pongWait := 2 * pingInterval
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readLoop(pongWait)
	go c.pingLoop(pingInterval)
	return c, nil
}

func (c *conn) readLoop(pongWait time.Duration) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.close(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.ID != nil && (env.Type == "response" || env.Type == "") {
			c.mu.Lock()
			ch, ok := c.pending[*env.ID]
			delete(c.pending, *env.ID)
			c.mu.Unlock()
			if ok {
				ch <- env
			}
			continue
		}

		if c.stream != nil {
			select {
			case c.stream <- data:
			case <-c.done:
				return
			}
		}
	}
}

func (c *conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// call sends a command and decodes its result into out.
func (c *conn) call(ctx context.Context, req map[string]any, out any) error {
	id := c.nextID.Add(1)
	req["id"] = id
	ch := make(chan envelope, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.close(err)
		return fmt.Errorf("send %v: %w", req["command"], err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closeErr()
	case env := <-ch:
		if env.Status == "error" || env.Error != "" {
			return &RPCError{Command: fmt.Sprint(req["command"]), Code: env.Error, Message: env.ErrorMessage}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %v result: %w", req["command"], err)
		}
		return nil
	}
}

func (c *conn) alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) close(err error) {
	c.closeOnce.Do(func() {
		if err == nil {
			err = errConnClosed
		}
		c.mu.Lock()
		c.err = fmt.Errorf("%s: %w", c.url, err)
		c.mu.Unlock()
		close(c.done)

		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
	})
}
