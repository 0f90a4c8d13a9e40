package ports

import "github.com/vncsmyrnk/livepoll/internal/core/domain"

// Connection is a live duplex channel bound to one identity. Neither Send
// nor Close may block on network I/O; both run under the dispatcher's lock.
type Connection interface {
	ID() string
	Identity() domain.Identity
	Send(msg any) error
	Close() error
}

type ConnectionRegistry interface {
	Register(conn Connection) (replaced Connection)
	Unregister(conn Connection) bool
	Connections() []Connection
	Len() int
	CloseAll() int
}

type Dispatcher interface {
	Unicast(conn Connection, msg any) error
	// Join sends conn its init snapshot and registers it, returning the
	// connection it replaced, if any.
	Join(conn Connection) (replaced Connection, err error)
	BroadcastAll() int
}
