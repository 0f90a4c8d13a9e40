package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const closeGracePeriod = time.Second

// wsPeer is the server side of one WebSocket. Messages are encoded by the
// sender and queued; a single write pump owns all writes to the socket,
// including the final close.
type wsPeer struct {
	id           string
	identity     domain.Identity
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       *slog.Logger

	send chan []byte
	done chan struct{}

	// mu guards closed and every write deadline change, so Close cannot be
	// overtaken by the pump arming a fresh deadline.
	mu     sync.Mutex
	closed bool
}

func newWSPeer(conn *websocket.Conn, identity domain.Identity, sendBuffer int, writeTimeout time.Duration, logger *slog.Logger) *wsPeer {
	id := uuid.NewString()
	return &wsPeer{
		id:           id,
		identity:     identity,
		conn:         conn,
		writeTimeout: writeTimeout,
		logger:       logger.With("connection_id", id, "identity", identity),
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
	}
}

func (p *wsPeer) ID() string                { return p.id }
func (p *wsPeer) Identity() domain.Identity { return p.identity }

func (p *wsPeer) Send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	select {
	case <-p.done:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case p.send <- payload:
		return nil
	case <-p.done:
		return domain.ErrConnectionClosed
	default:
		return domain.ErrSlowConsumer
	}
}

// Close marks the peer closed and returns without waiting on the socket.
// websocket.Conn.Close takes the same lock as an in-flight write, so the
// write deadline is pulled in to abort that write and the pump finishes the
// teardown.
func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return p.conn.SetWriteDeadline(time.Now())
}

// armWrite sets the deadline for the next frame. It reports false once the
// peer is closed.
func (p *wsPeer) armWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		p.logger.Warn("failed to set write deadline", "error", err)
	}
	return true
}

// writePump delivers queued frames until the peer is closed, then closes the
// socket. A write error or an expired write deadline closes the peer, which
// also ends its reader.
func (p *wsPeer) writePump() {
	defer p.closeSocket()

	for {
		select {
		case <-p.done:
			return
		case payload := <-p.send:
			if !p.armWrite() {
				return
			}
			if err := websocket.Message.Send(p.conn, string(payload)); err != nil {
				if !p.isClosed() {
					p.logger.Warn("write failed, closing connection", "error", err)
				}
				_ = p.Close()
				return
			}
		}
	}
}

func (p *wsPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *wsPeer) closeSocket() {
	_ = p.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
	if err := p.conn.Close(); err != nil {
		p.logger.Debug("socket close failed", "error", err)
	}
}
