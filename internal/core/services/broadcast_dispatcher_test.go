package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type dispatcherFixture struct {
	store      ports.TallyStore
	registry   ports.ConnectionRegistry
	dispatcher ports.Dispatcher
}

func newDispatcherFixture(t *testing.T) dispatcherFixture {
	t.Helper()
	store := newTestStore(t)
	registry := NewConnectionRegistry()
	return dispatcherFixture{
		store:      store,
		registry:   registry,
		dispatcher: NewBroadcastDispatcher(store, registry, nil),
	}
}

// connect registers a connection directly, without an init message.
func (f dispatcherFixture) connect(id string, identity domain.Identity) *fakeConnection {
	conn := newFakeConnection(id, identity)
	f.store.Register(identity)
	f.registry.Register(conn)
	return conn
}

func TestJoinSendsInitThenRegisters(t *testing.T) {
	f := newDispatcherFixture(t)
	require.NoError(t, f.store.AcceptVote("x", "A"))

	x := newFakeConnection("c1", "x")
	y := newFakeConnection("c2", "y")
	replaced, err := f.dispatcher.Join(x)
	require.NoError(t, err)
	assert.Nil(t, replaced)
	_, err = f.dispatcher.Join(y)
	require.NoError(t, err)

	assert.Equal(t, []any{domain.InitMessage{
		Type:     domain.MessageTypeInit,
		Options:  []domain.Option{"A", "B"},
		Votes:    domain.Tally{"A": 1, "B": 0},
		HasVoted: true,
	}}, x.received())
	assert.Equal(t, []any{domain.InitMessage{
		Type:     domain.MessageTypeInit,
		Options:  []domain.Option{"A", "B"},
		Votes:    domain.Tally{"A": 1, "B": 0},
		HasVoted: false,
	}}, y.received())
	assert.Equal(t, 2, f.registry.Len())
	assert.Equal(t, 2, f.store.Stats().Voters)
}

func TestJoinReturnsReplacedConnection(t *testing.T) {
	f := newDispatcherFixture(t)
	first := newFakeConnection("c1", "x")
	second := newFakeConnection("c2", "x")

	_, err := f.dispatcher.Join(first)
	require.NoError(t, err)
	replaced, err := f.dispatcher.Join(second)
	require.NoError(t, err)
	assert.Same(t, first, replaced)
	assert.Equal(t, 1, f.registry.Len())
}

func TestJoinFailureLeavesConnectionUnregistered(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := newFakeConnection("c1", "x")
	conn.sendErr = errors.New("broken pipe")

	_, err := f.dispatcher.Join(conn)
	require.Error(t, err)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, f.registry.Len())
}

func TestJoinIsOrderedWithBroadcasts(t *testing.T) {
	f := newDispatcherFixture(t)
	var wg sync.WaitGroup
	conns := make([]*fakeConnection, 20)

	for i := range conns {
		conns[i] = newFakeConnection(fmt.Sprintf("c%d", i), domain.Identity(fmt.Sprintf("id-%d", i)))
		wg.Add(2)
		go func(conn *fakeConnection) {
			defer wg.Done()
			_, _ = f.dispatcher.Join(conn)
		}(conns[i])
		go func(i int) {
			defer wg.Done()
			if err := f.store.AcceptVote(domain.Identity(fmt.Sprintf("voter-%d", i)), "A"); err == nil {
				f.dispatcher.BroadcastAll()
			}
		}(i)
	}
	wg.Wait()

	for _, conn := range conns {
		msgs := conn.received()
		require.NotEmpty(t, msgs)
		initMsg, ok := msgs[0].(domain.InitMessage)
		require.True(t, ok, "first message of %s must be init", conn.ID())

		last := initMsg.Votes.Total()
		for _, msg := range msgs[1:] {
			update, ok := msg.(domain.UpdateMessage)
			require.True(t, ok)
			assert.GreaterOrEqual(t, update.Votes.Total(), last)
			last = update.Votes.Total()
		}
	}
}

func TestBroadcastAllComputesHasVotedPerRecipient(t *testing.T) {
	f := newDispatcherFixture(t)
	x := f.connect("c1", "x")
	y := f.connect("c2", "y")

	require.NoError(t, f.store.AcceptVote("x", "A"))
	assert.Equal(t, 2, f.dispatcher.BroadcastAll())

	votes := domain.Tally{"A": 1, "B": 0}
	assert.Equal(t, []any{domain.NewUpdateMessage(votes, true)}, x.received())
	assert.Equal(t, []any{domain.NewUpdateMessage(votes, false)}, y.received())
}

func TestUnicastFailureDropsConnection(t *testing.T) {
	f := newDispatcherFixture(t)
	conn := f.connect("c1", "x")
	conn.sendErr = errors.New("broken pipe")

	err := f.dispatcher.Unicast(conn, domain.NewUpdateMessage(domain.Tally{}, false))
	require.Error(t, err)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, f.registry.Len())
}

func TestBroadcastAllSkipsFailedConnections(t *testing.T) {
	f := newDispatcherFixture(t)
	healthy := f.connect("c1", "x")
	broken := f.connect("c2", "y")
	broken.sendErr = domain.ErrSlowConsumer
	other := f.connect("c3", "z")

	assert.Equal(t, 2, f.dispatcher.BroadcastAll())
	assert.Len(t, healthy.received(), 1)
	assert.Len(t, other.received(), 1)
	assert.True(t, broken.isClosed())
	assert.Equal(t, 2, f.registry.Len())

	// The dropped connection is not targeted again.
	assert.Equal(t, 2, f.dispatcher.BroadcastAll())
	assert.Len(t, healthy.received(), 2)
}

func TestBroadcastAllToleratesDisconnectMidBroadcast(t *testing.T) {
	f := newDispatcherFixture(t)
	conns := make([]*fakeConnection, 0, 10)
	for i := 0; i < 10; i++ {
		conns = append(conns, f.connect(fmt.Sprintf("c%d", i), domain.Identity(fmt.Sprintf("id-%d", i))))
	}

	// Whichever connection is sent to first closes and unregisters another.
	var once sync.Once
	victim := conns[5]
	for _, c := range conns {
		if c == victim {
			continue
		}
		c.onSend = func() {
			once.Do(func() {
				f.registry.Unregister(victim)
				_ = victim.Close()
			})
		}
	}

	require.NotPanics(t, func() { f.dispatcher.BroadcastAll() })
	for _, c := range conns {
		if c == victim {
			continue
		}
		assert.Len(t, c.received(), 1, "connection %s", c.ID())
	}
	// The victim may have been served before it was closed, never after.
	assert.LessOrEqual(t, len(victim.received()), 1)
	assert.Equal(t, 9, f.registry.Len())
}

func TestBroadcastAllConcurrentWithRegistration(t *testing.T) {
	f := newDispatcherFixture(t)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			conn := f.connect(fmt.Sprintf("c%d", i), domain.Identity(fmt.Sprintf("id-%d", i)))
			if i%3 == 0 {
				f.registry.Unregister(conn)
			}
		}(i)
		go func() {
			defer wg.Done()
			f.dispatcher.BroadcastAll()
		}()
	}
	wg.Wait()

	delivered := f.dispatcher.BroadcastAll()
	assert.Equal(t, f.registry.Len(), delivered)
}
