package services

import (
	"log/slog"
	"sync"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type broadcastDispatcher struct {
	store    ports.TallyStore
	registry ports.ConnectionRegistry
	logger   *slog.Logger

	// mu orders joins against broadcasts so that every connection sees its
	// init first and then only tallies at or after that snapshot.
	mu sync.Mutex
}

func NewBroadcastDispatcher(store ports.TallyStore, registry ports.ConnectionRegistry, logger *slog.Logger) ports.Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &broadcastDispatcher{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Unicast hands msg to a single connection. A failed send means the peer is
// gone: it is dropped from the registry and closed, and nothing is retried.
func (d *broadcastDispatcher) Unicast(conn ports.Connection, msg any) error {
	if err := conn.Send(msg); err != nil {
		d.logger.Warn("dropping connection after failed send",
			"connection_id", conn.ID(),
			"identity", conn.Identity(),
			"error", err,
		)
		d.registry.Unregister(conn)
		_ = conn.Close()
		return err
	}
	return nil
}

func (d *broadcastDispatcher) Join(conn ports.Connection) (ports.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.store.Register(conn.Identity())
	snapshot := d.store.Snapshot(conn.Identity())
	if err := d.Unicast(conn, domain.NewInitMessage(snapshot)); err != nil {
		return nil, err
	}
	return d.registry.Register(conn), nil
}

func (d *broadcastDispatcher) BroadcastAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	votes := d.store.CurrentTally()
	conns := d.registry.Connections()

	delivered := 0
	for _, conn := range conns {
		_, hasVoted := d.store.VoteStatus(conn.Identity())
		if err := d.Unicast(conn, domain.NewUpdateMessage(votes, hasVoted)); err != nil {
			continue
		}
		delivered++
	}

	d.logger.Debug("broadcast update", "recipients", len(conns), "delivered", delivered)
	return delivered
}
