package services

import (
	"sync"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type connectionRegistry struct {
	mu         sync.RWMutex
	byID       map[string]ports.Connection
	byIdentity map[domain.Identity]string
}

func NewConnectionRegistry() ports.ConnectionRegistry {
	return &connectionRegistry{
		byID:       make(map[string]ports.Connection),
		byIdentity: make(map[domain.Identity]string),
	}
}

// Register stores conn as the live connection of its identity. A previous
// connection of the same identity is dropped and returned to the caller.
func (r *connectionRegistry) Register(conn ports.Connection) ports.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced ports.Connection
	if prevID, ok := r.byIdentity[conn.Identity()]; ok && prevID != conn.ID() {
		replaced = r.byID[prevID]
		delete(r.byID, prevID)
	}

	r.byID[conn.ID()] = conn
	r.byIdentity[conn.Identity()] = conn.ID()
	return replaced
}

func (r *connectionRegistry) Unregister(conn ports.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[conn.ID()]
	if !ok || current != conn {
		return false
	}
	delete(r.byID, conn.ID())
	if r.byIdentity[conn.Identity()] == conn.ID() {
		delete(r.byIdentity, conn.Identity())
	}
	return true
}

func (r *connectionRegistry) Connections() []ports.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]ports.Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		conns = append(conns, conn)
	}
	return conns
}

func (r *connectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *connectionRegistry) CloseAll() int {
	r.mu.Lock()
	conns := make([]ports.Connection, 0, len(r.byID))
	for _, conn := range r.byID {
		conns = append(conns, conn)
	}
	r.byID = make(map[string]ports.Connection)
	r.byIdentity = make(map[domain.Identity]string)
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return len(conns)
}
