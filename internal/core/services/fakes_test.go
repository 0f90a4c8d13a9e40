package services

import (
	"sync"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type fakeConnection struct {
	id       string
	identity domain.Identity

	mu       sync.Mutex
	messages []any
	sendErr  error
	closed   bool
	onSend   func()
}

func newFakeConnection(id string, identity domain.Identity) *fakeConnection {
	return &fakeConnection{id: id, identity: identity}
}

func (c *fakeConnection) ID() string                { return c.id }
func (c *fakeConnection) Identity() domain.Identity { return c.identity }

func (c *fakeConnection) Send(msg any) error {
	if c.onSend != nil {
		c.onSend()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.messages...)
}

type fakeDispatcher struct {
	mu         sync.Mutex
	broadcasts int
}

func (d *fakeDispatcher) Unicast(conn ports.Connection, msg any) error { return conn.Send(msg) }

func (d *fakeDispatcher) Join(ports.Connection) (ports.Connection, error) { return nil, nil }

func (d *fakeDispatcher) BroadcastAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broadcasts++
	return 0
}

func (d *fakeDispatcher) broadcastCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broadcasts
}
