package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

// Client is one websocket connection owned by an authenticated customer.
type Client struct {
	conn      *websocket.Conn
	out       chan []byte
	accountID string

	mu       sync.RWMutex
	channels map[string]struct{}
	closed   bool
}

func NewClient(conn *websocket.Conn, accountID string) *Client {
	return &Client{
		conn:      conn,
		out:       make(chan []byte, 64),
		accountID: accountID,
		channels:  map[string]struct{}{},
	}
}

// send drops slow consumers instead of blocking the publisher.
func (c *Client) send(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.out <- payload:
	default:
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Client) listChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
