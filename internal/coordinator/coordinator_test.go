package coordinator

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/model"
	"github.com/parleyhq/parley/internal/store"
)

// fakeBus records broadcasts instead of delivering them.
type fakeBus struct {
	mu     sync.Mutex
	events []recorded
}

type recorded struct {
	name   string
	data   json.RawMessage
	except uuid.UUID
}

func (b *fakeBus) Broadcast(payload []byte) {
	b.record(payload, uuid.Nil)
}

func (b *fakeBus) BroadcastExcept(payload []byte, except uuid.UUID) {
	b.record(payload, except)
}

func (b *fakeBus) record(payload []byte, except uuid.UUID) {
	var ev model.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		panic("fakeBus: undecodable event: " + err.Error())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recorded{name: ev.Name, data: ev.Data, except: except})
}

func (b *fakeBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.name
	}
	return out
}

func (b *fakeBus) byName(name string) []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []recorded{}
	for _, ev := range b.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeBus) {
	t.Helper()

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	bus := &fakeBus{}
	return New(bus, store.NewMessageStore(db)), bus
}

func TestOnlineCountTracksConnections(t *testing.T) {
	c, bus := newTestCoordinator(t)

	a, b := uuid.NewString(), uuid.NewString()

	c.Connect(a)
	c.Connect(b)
	assert.Equal(t, 2, c.OnlineCount())

	c.Disconnect(a)
	assert.Equal(t, 1, c.OnlineCount())

	c.Disconnect(b)
	assert.Equal(t, 0, c.OnlineCount())

	// Every transition was announced, with the count at that moment.
	counts := bus.byName(model.EvUpdateOnlineUsers)
	require.Len(t, counts, 4)

	var got []int
	for _, ev := range counts {
		var n int
		require.NoError(t, json.Unmarshal(ev.data, &n))
		got = append(got, n)
	}
	assert.Equal(t, []int{1, 2, 1, 0}, got)
}

func TestAnnouncePublishesStatusAndLastSeen(t *testing.T) {
	c, bus := newTestCoordinator(t)

	connID := uuid.NewString()
	c.Connect(connID)
	c.Announce(connID, "support")

	statuses := bus.byName(model.EvUserStatus)
	require.Len(t, statuses, 1)

	var status string
	require.NoError(t, json.Unmarshal(statuses[0].data, &status))
	assert.Equal(t, "support connected", status)
	// The originator already knows it connected.
	assert.Equal(t, connID, statuses[0].except.String())

	seen := bus.byName(model.EvLastSeen)
	require.Len(t, seen, 1)
	assert.Equal(t, uuid.Nil, seen[0].except, "lastSeen goes to everyone")

	var m map[string]string
	require.NoError(t, json.Unmarshal(seen[0].data, &m))
	assert.Contains(t, m, connID)
}

func TestLastSeenGrowsMonotonically(t *testing.T) {
	c, bus := newTestCoordinator(t)

	var prev int
	for i := 0; i < 5; i++ {
		connID := uuid.NewString()
		c.Connect(connID)
		c.Announce(connID, "guest")
		c.Disconnect(connID)
	}

	for _, ev := range bus.byName(model.EvLastSeen) {
		var m map[string]string
		require.NoError(t, json.Unmarshal(ev.data, &m))
		assert.GreaterOrEqual(t, len(m), prev, "lastSeen must never shrink")
		prev = len(m)
	}
	assert.Equal(t, 5, prev)
}

func TestTypingDerivesAnyTyping(t *testing.T) {
	c, bus := newTestCoordinator(t)

	c.Typing("alice")
	c.Typing("bob")

	for _, ev := range bus.byName(model.EvTyping) {
		var anyTyping bool
		require.NoError(t, json.Unmarshal(ev.data, &anyTyping))
		assert.True(t, anyTyping)
	}
}

func TestStopTypingFiresOnlyOnEmptyTransition(t *testing.T) {
	c, bus := newTestCoordinator(t)

	c.Typing("alice")
	c.Typing("bob")

	// Someone else is still typing: no event.
	c.StopTyping("alice")
	assert.Empty(t, bus.byName(model.EvStopTyping))

	// Transition to empty: exactly one payload-less event.
	c.StopTyping("bob")
	stops := bus.byName(model.EvStopTyping)
	require.Len(t, stops, 1)
	assert.Empty(t, stops[0].data)

	// Already empty: still one.
	c.StopTyping("carol")
	assert.Len(t, bus.byName(model.EvStopTyping), 1)
}

func TestReactionsAccumulateInOrder(t *testing.T) {
	c, bus := newTestCoordinator(t)

	c.React("m1", "👍")
	c.React("m1", "🔥")
	c.React("m1", "👍")
	c.React("m2", "🎉")

	assert.Equal(t, []string{"👍", "🔥", "👍"}, c.Reactions("m1"))
	assert.Equal(t, []string{"🎉"}, c.Reactions("m2"))

	// Each broadcast carries only the new reaction.
	reactions := bus.byName(model.EvMessageReaction)
	require.Len(t, reactions, 4)

	var p model.ReactionPayload
	require.NoError(t, json.Unmarshal(reactions[0].data, &p))
	assert.Equal(t, model.ReactionPayload{MessageID: "m1", Emoji: "👍"}, p)
}

func TestSendMessageBroadcastsAfterDurableWrite(t *testing.T) {
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	messages := store.NewMessageStore(db)
	bus := &fakeBus{}
	c := New(bus, messages)

	saved, err := c.SendMessage("hi", "alice", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	events := bus.byName(model.EvMessage)
	require.Len(t, events, 1)

	var got model.Message
	require.NoError(t, json.Unmarshal(events[0].data, &got))
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, uuid.Nil, events[0].except, "sender receives its own message")

	// The broadcast record is already retrievable via the read path.
	list, err := messages.ListMessages()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
}

func TestSendMessageSanitizesText(t *testing.T) {
	c, bus := newTestCoordinator(t)

	saved, err := c.SendMessage(`hello <script>alert("x")</script>`, "alice", nil)
	require.NoError(t, err)
	assert.NotContains(t, saved.Text, "<script>")

	events := bus.byName(model.EvMessage)
	require.Len(t, events, 1)
}

type failingStore struct{}

func (failingStore) CreateMessage(text, sender string, image *string) (model.Message, error) {
	return model.Message{}, errors.New("disk on fire")
}

func (failingStore) DeleteMessage(id string) error {
	return errors.New("disk on fire")
}

func TestFailedWriteBroadcastsNothing(t *testing.T) {
	bus := &fakeBus{}
	c := New(bus, failingStore{})

	_, err := c.SendMessage("hi", "alice", nil)
	require.Error(t, err)
	assert.Empty(t, bus.events)
}

func TestMarkReadEmitsReadThenSeen(t *testing.T) {
	c, bus := newTestCoordinator(t)

	c.MarkRead("m1", "alice")
	c.MarkRead("m1", "alice")

	assert.Equal(t, []string{
		model.EvReadMessage, model.EvSeenMessage,
		model.EvReadMessage, model.EvSeenMessage,
	}, bus.names())
}

func TestDeleteMessageBroadcastsEvenWhenAbsent(t *testing.T) {
	c, bus := newTestCoordinator(t)

	require.NoError(t, c.DeleteMessage("never-existed"))

	deletes := bus.byName(model.EvDeleteMessage)
	require.Len(t, deletes, 1)

	var id string
	require.NoError(t, json.Unmarshal(deletes[0].data, &id))
	assert.Equal(t, "never-existed", id)
}

func TestHandleEventDispatch(t *testing.T) {
	c, bus := newTestCoordinator(t)
	connID := uuid.NewString()

	raw := func(v any) json.RawMessage {
		p, err := json.Marshal(v)
		require.NoError(t, err)
		return p
	}

	c.HandleEvent(connID, model.Event{Name: model.EvTyping, Data: raw("alice")})
	c.HandleEvent(connID, model.Event{Name: model.EvStopTyping, Data: raw("alice")})
	c.HandleEvent(connID, model.Event{Name: model.EvMessageReaction, Data: raw(model.ReactionPayload{MessageID: "m1", Emoji: "✨"})})
	c.HandleEvent(connID, model.Event{Name: model.EvSendMessage, Data: raw(model.SendMessagePayload{Text: "yo", Sender: "alice"})})
	c.HandleEvent(connID, model.Event{Name: "bogus", Data: raw("ignored")})

	assert.Equal(t, []string{
		model.EvTyping,
		model.EvStopTyping,
		model.EvMessageReaction,
		model.EvMessage,
	}, bus.names())
}

func TestBadPayloadIsDropped(t *testing.T) {
	c, bus := newTestCoordinator(t)

	c.HandleEvent(uuid.NewString(), model.Event{
		Name: model.EvSendMessage,
		Data: json.RawMessage(`"not an object"`),
	})

	assert.Empty(t, bus.events)
}
