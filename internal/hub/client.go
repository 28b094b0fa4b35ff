package hub

import (
	"net"

	"github.com/google/uuid"
	"github.com/lxzan/gws"
)

// conn is the part of *gws.Conn a client writes through.
type conn interface {
	WriteMessage(opcode gws.Opcode, payload []byte) error
	NetConn() net.Conn
}

// Client is one connected viewer.
type Client struct {
	id   string
	conn conn
	send chan []byte
}

// NewClient creates a Client for conn.
func NewClient(c conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: c,
		send: make(chan []byte, 256),
	}
}

func (c *Client) ID() string { return c.id }

// WritePump sends queued messages until the hub closes the send channel or
// a write fails.
func (c *Client) WritePump() {
	defer c.conn.NetConn().Close()

	for msg := range c.send {
		if err := c.conn.WriteMessage(gws.OpcodeText, msg); err != nil {
			return
		}
	}
}
