package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/vncsmyrnk/livepoll/internal/adapters/session"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
)

type testApp struct {
	Server     *httptest.Server
	Client     *http.Client
	Sessions   *session.Resolver
	Store      ports.TallyStore
	Registry   ports.ConnectionRegistry
	Dispatcher ports.Dispatcher
}

// wireMessage is the union of every server frame as a client decodes it.
type wireMessage struct {
	Type     string           `json:"type"`
	Options  []string         `json:"options"`
	Votes    map[string]int64 `json:"votes"`
	HasVoted bool             `json:"hasVoted"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestApp(t *testing.T, cfg WSConfig, options ...domain.Option) *testApp {
	t.Helper()
	if len(options) == 0 {
		options = []domain.Option{"A", "B"}
	}

	logger := testLogger()
	store, err := services.NewTallyStore(options)
	require.NoError(t, err)
	registry := services.NewConnectionRegistry()
	dispatcher := services.NewBroadcastDispatcher(store, registry, logger)
	voteService := services.NewVoteService(store, dispatcher, logger)

	sessions, err := session.NewResolver(session.Config{Secret: []byte("test-secret")})
	require.NoError(t, err)

	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}

	handler := NewHandler(Routes{
		Poll:     NewPollHandler(store, sessions),
		Vote:     NewVoteHandler(voteService, sessions),
		WS:       NewWSHandler(dispatcher, registry, voteService, sessions, cfg, logger),
		Static:   NewStaticHandler(""),
		Sessions: sessions.Middleware,
	})
	server := httptest.NewServer(handler)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	app := &testApp{
		Server:     server,
		Client:     &http.Client{Jar: jar, Timeout: 5 * time.Second},
		Sessions:   sessions,
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
	}
	t.Cleanup(app.Teardown)
	return app
}

func (a *testApp) Teardown() {
	a.Registry.CloseAll()
	a.Server.Close()
}

// newSession issues a session cookie the way a page load would.
func (a *testApp) newSession(t *testing.T) (domain.Identity, *http.Cookie) {
	t.Helper()
	identity, cookie, err := a.Sessions.Issue()
	require.NoError(t, err)
	return identity, cookie
}

func (a *testApp) wsURL() string {
	return "ws" + strings.TrimPrefix(a.Server.URL, "http") + "/ws"
}

func (a *testApp) dial(t *testing.T, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	return a.dialFrom(t, cookie, a.Server.URL)
}

func (a *testApp) dialFrom(t *testing.T, cookie *http.Cookie, origin string) *websocket.Conn {
	t.Helper()
	conn, err := a.tryDial(cookie, origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (a *testApp) tryDial(cookie *http.Cookie, origin string) (*websocket.Conn, error) {
	config, err := websocket.NewConfig(a.wsURL(), origin)
	if err != nil {
		return nil, err
	}
	if cookie != nil {
		config.Header.Set("Cookie", cookie.Name+"="+cookie.Value)
	}
	return websocket.DialConfig(config)
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wireMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, websocket.Message.Send(conn, frame))
}

func sendVote(t *testing.T, conn *websocket.Conn, option string) {
	t.Helper()
	sendFrame(t, conn, `{"type":"vote","option":"`+option+`"}`)
}
