package core

// clientQueueSize bounds the per-connection outbound event queue.
const clientQueueSize = 32

// Client is a live connection as seen by the core layer.
// Transports drain Events and write them to the wire.
type Client struct {
	ID     string
	Events chan *Event
}

// NewClient constructs a client with an initialized event queue.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, clientQueueSize),
	}
}

// push enqueues an event without blocking. Returns false if the queue is full.
func (c *Client) push(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
