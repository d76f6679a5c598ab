package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// ErrClosed is returned by Call once the connection has gone away.
var ErrClosed = errors.New("connection closed")

// Handler processes an unsolicited envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Connection represents a single on-device helper talking to the bot.
//
// The helper can push messages (hello) that are routed to handlers, and the
// bot can Call the helper and wait for the matching reply. Calls may run
// concurrently; probes racing each other all share one connection.
type Connection struct {
	conn     net.Conn
	handlers map[string]Handler
	Device   string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope
	closed  chan struct{}
	once    sync.Once
}

func NewConnection(conn net.Conn, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		conn:     conn,
		handlers: handlers,
		pending:  make(map[string]chan Envelope),
		closed:   make(chan struct{}),
	}
}

// RegisterHandler must be called before ReadLoop starts.
func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteEnvelope(c.conn, env)
}

// Call sends a request and waits for the reply with the same ID.
//
// If ctx ends first the pending slot is dropped, so a reply that shows up
// later is logged and discarded by ReadLoop instead of being delivered.
func (c *Connection) Call(ctx context.Context, msgType string, data any) (Envelope, error) {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return Envelope{}, err
	}
	env.ID = uuid.Must(uuid.NewV7()).String()

	ch := make(chan Envelope, 1)
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return Envelope{}, ErrClosed
	default:
	}
	c.pending[env.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}()

	if err := c.write(env); err != nil {
		return Envelope{}, fmt.Errorf("send %s: %w", msgType, err)
	}

	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-c.closed:
		return Envelope{}, ErrClosed
	case resp := <-ch:
		if resp.Error != "" {
			return resp, fmt.Errorf("%s: device error: %s", msgType, resp.Error)
		}
		return resp, nil
	}
}

// Done is closed when ReadLoop has returned.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Close shuts the underlying connection; ReadLoop then returns.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// ReadLoop blocks until the connection closes or errors. It owns the conn lifetime
// so callers don't need to track cleanup.
func (c *Connection) ReadLoop() {
	defer func() {
		c.conn.Close()
		c.once.Do(func() { close(c.closed) })
	}()

	for {
		env, err := ReadEnvelope(c.conn)
		if err != nil {
			slog.Info("connection read ended", "device", c.Device, "error", err)
			return
		}

		if env.ReplyTo != "" {
			c.deliver(env)
			continue
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			slog.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		if err != nil {
			slog.Error("handler error", "type", env.Type, "error", err)
			continue
		}

		if resp != nil {
			resp.ReplyTo = env.ID
			if err := c.write(*resp); err != nil {
				slog.Error("failed to send response", "type", resp.Type, "error", err)
				return
			}
			slog.Debug("sent response", "type", resp.Type, "device", c.Device)
		}
	}
}

func (c *Connection) deliver(env Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.ReplyTo]
	c.mu.Unlock()
	if !ok {
		slog.Debug("discarding late reply", "type", env.Type, "reply_to", env.ReplyTo)
		return
	}
	select {
	case ch <- env:
	default:
		slog.Warn("duplicate reply", "type", env.Type, "reply_to", env.ReplyTo)
	}
}
