package realtime

import "sync"

// sendBuffer is the per-connection outbound queue length.
const sendBuffer = 32

const (
	ScopeOrder  = "order"
	ScopeDriver = "driver"
)

// Scope groups the connections that share events: an order's chat or a
// driver's location feed.
type Scope struct {
	Kind string
	ID   int64
}

type Participant struct {
	UserID int64
	Role   string
}

// Client is one registered connection. The transport drains Send until it is
// closed by the Hub.
type Client struct {
	scope       Scope
	participant Participant
	send        chan []byte
	closeOnce   sync.Once
}

func newClient(scope Scope, p Participant) *Client {
	return &Client{scope: scope, participant: p, send: make(chan []byte, sendBuffer)}
}

func (c *Client) Scope() Scope             { return c.scope }
func (c *Client) Participant() Participant { return c.participant }
func (c *Client) Send() <-chan []byte      { return c.send }

// enqueue never blocks; false means the queue is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
