package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const (
	defaultWriteTimeout       = 10 * time.Second
	defaultSendBuffer         = 16
	defaultMaxMessageBytes    = 4096
	defaultMaxFramesPerSecond = 20
)

type WSConfig struct {
	WriteTimeout       time.Duration
	SendBuffer         int
	MaxMessageBytes    int
	MaxFramesPerSecond int
	AllowedOrigins     []string
}

type identityResolver interface {
	Resolve(r *http.Request) (domain.Identity, error)
	Issue() (domain.Identity, *http.Cookie, error)
}

// WSHandler runs the poll protocol over one WebSocket per client: init on
// connect, then vote frames until the socket closes.
type WSHandler struct {
	dispatcher ports.Dispatcher
	registry   ports.ConnectionRegistry
	votes      ports.VoteService
	sessions   identityResolver
	cfg        WSConfig
	logger     *slog.Logger
}

func NewWSHandler(dispatcher ports.Dispatcher, registry ports.ConnectionRegistry, votes ports.VoteService, sessions identityResolver, cfg WSConfig, logger *slog.Logger) *WSHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if cfg.MaxFramesPerSecond <= 0 {
		cfg.MaxFramesPerSecond = defaultMaxFramesPerSecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WSHandler{
		dispatcher: dispatcher,
		registry:   registry,
		votes:      votes,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, header, err := h.resolveIdentity(r)
	if err != nil {
		h.logger.Error("failed to resolve identity", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	server := websocket.Server{
		Config:    websocket.Config{Header: header},
		Handshake: h.checkOrigin,
		Handler: func(conn *websocket.Conn) {
			h.serveConn(conn, identity)
		},
	}
	server.ServeHTTP(w, r)
}

// resolveIdentity reads the session cookie. Clients without a valid session
// get a fresh identity, and the cookie rides on the upgrade response.
func (h *WSHandler) resolveIdentity(r *http.Request) (domain.Identity, http.Header, error) {
	identity, err := h.sessions.Resolve(r)
	if err == nil {
		return identity, nil, nil
	}

	identity, cookie, err := h.sessions.Issue()
	if err != nil {
		return "", nil, err
	}
	header := make(http.Header)
	header.Add("Set-Cookie", cookie.String())
	return identity, header, nil
}

func (h *WSHandler) checkOrigin(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return err
	}
	config.Origin = origin

	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" {
			return nil
		}
		if origin != nil && strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin.Scheme+"://"+origin.Host) {
			return nil
		}
	}
	if origin == nil {
		return errors.New("missing origin")
	}
	return fmt.Errorf("origin %q not allowed", origin.String())
}

func (h *WSHandler) serveConn(conn *websocket.Conn, identity domain.Identity) {
	conn.MaxPayloadBytes = h.cfg.MaxMessageBytes
	peer := newWSPeer(conn, identity, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.logger)
	go peer.writePump()

	defer func() {
		h.registry.Unregister(peer)
		_ = peer.Close()
		peer.logger.Info("client disconnected")
	}()

	replaced, err := h.dispatcher.Join(peer)
	if err != nil {
		return
	}
	if replaced != nil {
		peer.logger.Info("closing superseded connection", "replaced_connection_id", replaced.ID())
		_ = replaced.Close()
	}
	peer.logger.Info("client connected")

	ctx := context.Background()
	if req := conn.Request(); req != nil {
		ctx = req.Context()
	}

	limiter := newFrameLimiter(h.cfg.MaxFramesPerSecond)
	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				peer.logger.Warn("discarding oversized frame", "limit_bytes", h.cfg.MaxMessageBytes)
				continue
			}
			if !errors.Is(err, io.EOF) {
				peer.logger.Debug("read failed", "error", err)
			}
			return
		}

		if !limiter.allow(time.Now()) {
			peer.logger.Warn("discarding frame over rate limit")
			continue
		}
		h.handleMessage(ctx, peer, raw)
	}
}

// handleMessage never tears the connection down; bad input is logged and
// dropped, and rejected votes get no reply.
func (h *WSHandler) handleMessage(ctx context.Context, peer *wsPeer, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			peer.logger.Error("panic while handling message", "panic", rec, "message", string(raw))
		}
	}()

	var msg domain.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		peer.logger.Warn("discarding malformed message", "error", err)
		return
	}

	switch msg.Type {
	case domain.MessageTypeVote:
		err := h.votes.Vote(ctx, domain.Vote{Identity: peer.identity, Option: msg.Option})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrAlreadyVoted):
			peer.logger.Debug("ignoring repeat vote", "option", msg.Option)
		case errors.Is(err, domain.ErrInvalidOption):
			peer.logger.Warn("discarding vote for unknown option", "option", msg.Option)
		default:
			peer.logger.Error("failed to process vote", "option", msg.Option, "error", err)
		}
	default:
		peer.logger.Warn("discarding message with unknown type", "type", msg.Type)
	}
}

// frameLimiter is a fixed one-second window frame budget.
type frameLimiter struct {
	limit       int
	windowStart time.Time
	frames      int
}

func newFrameLimiter(limit int) *frameLimiter {
	return &frameLimiter{limit: limit}
}

func (l *frameLimiter) allow(now time.Time) bool {
	if now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.frames = 0
	}
	l.frames++
	return l.frames <= l.limit
}
