package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamboningen/yunoDaifugo/internal/game"
	"github.com/teamboningen/yunoDaifugo/internal/models"
	"github.com/teamboningen/yunoDaifugo/internal/store"
)

// recorder is an Emitter that keeps every event per occupant.
type recorder struct {
	mu     sync.Mutex
	events map[uuid.UUID][]Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[uuid.UUID][]Event)}
}

func (r *recorder) Emit(occupantID uuid.UUID, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[occupantID] = append(r.events[occupantID], ev)
}

func (r *recorder) types(occupantID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events[occupantID] {
		out = append(out, ev.Type)
	}
	return out
}

// last returns the most recent event of type typ sent to occupantID.
func (r *recorder) last(occupantID uuid.UUID, typ string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events[occupantID]
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == typ {
			return evs[i], true
		}
	}
	return Event{}, false
}

func (r *recorder) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[uuid.UUID][]Event)
}

// flakyStore fails loads or saves on demand and can slow loads down to widen races.
type flakyStore struct {
	store.Store
	failLoad  atomic.Bool
	failSave  atomic.Bool
	loadDelay time.Duration
}

func (s *flakyStore) Load(ctx context.Context, key string) (*models.RoomSnapshot, bool, error) {
	if s.failLoad.Load() {
		return nil, false, errors.New("connection refused")
	}
	if s.loadDelay > 0 {
		time.Sleep(s.loadDelay)
	}
	return s.Store.Load(ctx, key)
}

func (s *flakyStore) Save(ctx context.Context, key string, snap *models.RoomSnapshot) error {
	if s.failSave.Load() {
		return errors.New("connection refused")
	}
	return s.Store.Save(ctx, key, snap)
}

// actionSink collects published room actions.
type actionSink struct {
	mu      sync.Mutex
	actions []models.RoomAction
}

func (a *actionSink) PublishRoomAction(_ context.Context, rec models.RoomAction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, rec)
	return nil
}

func (a *actionSink) types() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int)
	for _, rec := range a.actions {
		out[rec.ActionType]++
	}
	return out
}

// presenceSet marks occupants as having a live connection.
type presenceSet struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
}

func (p *presenceSet) set(occupantID uuid.UUID, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online == nil {
		p.online = make(map[uuid.UUID]bool)
	}
	p.online[occupantID] = on
}

func (p *presenceSet) Connected(occupantID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[occupantID]
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestGateway(t *testing.T, s store.Store, opts Options) (*Gateway, *recorder) {
	t.Helper()
	rec := newRecorder()
	opts.Logger = quietLogger()
	g := New(s, rec, opts)
	t.Cleanup(g.Close)
	return g, rec
}

// seatTwo joins Alice and Bob into the default room and clears the recorder.
func seatTwo(t *testing.T, g *Gateway, rec *recorder) (uuid.UUID, uuid.UUID) {
	t.Helper()
	alice, bob := uuid.New(), uuid.New()
	require.NoError(t, g.JoinGame(context.Background(), alice, "Alice"))
	require.NoError(t, g.JoinGame(context.Background(), bob, "Bob"))
	rec.clear()
	return alice, bob
}

func loadRoom(t *testing.T, s store.Store, room string) *models.RoomSnapshot {
	t.Helper()
	snap, ok, err := s.Load(context.Background(), room)
	require.NoError(t, err)
	require.True(t, ok, "room %s missing", room)
	return snap
}

func viewOf(t *testing.T, ev Event) game.GameView {
	t.Helper()
	view, ok := ev.Payload.(game.GameView)
	require.True(t, ok, "payload of %s is %T", ev.Type, ev.Payload)
	return view
}

func TestJoinGameCreatesDefaultRoom(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, g.JoinGame(ctx, alice, "Alice"))
	assert.Equal(t, []string{EventRoomJoined, EventGameLoaded}, rec.types(alice))

	loaded, _ := rec.last(alice, EventGameLoaded)
	view := viewOf(t, loaded)
	require.Len(t, view.Players, game.SeatCount)
	assert.True(t, view.Players[0].IsSelf)
	require.NotNil(t, view.Players[0].Hand)
	assert.Empty(t, *view.Players[0].Hand)
	assert.Equal(t, "Player 2", view.Players[1].Name)
	assert.Equal(t, game.DeckSize, view.DeckSize)

	require.NoError(t, g.JoinGame(ctx, bob, "Bob"))
	joined, _ := rec.last(bob, EventRoomJoined)
	assert.Equal(t, RoomJoinedPayload{RoomName: "currentGame", SeatIndex: 1}, joined.Payload)

	upd, ok := rec.last(alice, EventGameUpdated)
	require.True(t, ok)
	aliceView := viewOf(t, upd)
	require.Len(t, aliceView.Announcements, 1)
	assert.Equal(t, "Bob joined the room", aliceView.Announcements[0].Message)
	assert.Equal(t, "Bob", aliceView.Players[1].Name)

	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, alice, snap.Players[0].OccupantID)
	assert.Equal(t, bob, snap.Players[1].OccupantID)

	room, ok := g.RoomOf(bob)
	assert.True(t, ok)
	assert.Equal(t, "currentGame", room)
}

func TestJoinFullRoom(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	carol := uuid.New()

	err := g.Dispatch(context.Background(), carol, Inbound{Type: EventJoinGame, PlayerName: "Carol"})
	assert.ErrorIs(t, err, game.ErrRoomFull)
	assert.Equal(t, []string{EventGameFull}, rec.types(carol), "no error event on a full room")
	assert.Empty(t, rec.types(alice))
	assert.Empty(t, rec.types(bob))

	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, int64(2), snap.Version, "nothing saved")
	_, ok := g.RoomOf(carol)
	assert.False(t, ok)
}

func TestRejoinKeepsSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)

	require.NoError(t, g.JoinGame(context.Background(), alice, ""))
	joined, _ := rec.last(alice, EventRoomJoined)
	assert.Equal(t, 0, joined.Payload.(RoomJoinedPayload).SeatIndex)

	upd, ok := rec.last(bob, EventGameUpdated)
	require.True(t, ok)
	assert.Equal(t, "Alice reconnected", viewOf(t, upd).Announcements[0].Message)
	assert.Equal(t, "Alice", loadRoom(t, st, "currentGame").Players[0].DisplayName)
}

func TestCreateAndJoinNamedRooms(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, g.Dispatch(ctx, alice, Inbound{Type: EventCreateRoom, RoomName: " friday ", PlayerName: "Alice"}))
	assert.Equal(t, "Alice", loadRoom(t, st, "friday").Players[0].DisplayName)

	err := g.Dispatch(ctx, bob, Inbound{Type: EventCreateRoom, RoomName: "friday"})
	assert.ErrorIs(t, err, ErrRoomExists)
	ev, ok := rec.last(bob, EventError)
	require.True(t, ok)
	assert.Equal(t, ErrorPayload{Message: "A room with that name already exists."}, ev.Payload)

	err = g.Dispatch(ctx, bob, Inbound{Type: EventJoinRoom, RoomName: "saturday"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, ok, _ = st.Load(ctx, "saturday")
	assert.False(t, ok)

	// nested payload form
	require.NoError(t, g.Dispatch(ctx, bob, Inbound{
		Type:    EventJoinRoom,
		Payload: &InboundPayload{RoomName: "friday", PlayerName: "Bob"},
	}))
	snap := loadRoom(t, st, "friday")
	assert.Equal(t, bob, snap.Players[1].OccupantID)
	assert.Equal(t, "Bob", snap.Players[1].DisplayName)
}

func TestInvalidNames(t *testing.T) {
	g, rec := newTestGateway(t, store.NewMemory(), Options{})
	ctx := context.Background()
	occ := uuid.New()

	for _, in := range []Inbound{
		{Type: EventCreateRoom, RoomName: ""},
		{Type: EventCreateRoom, RoomName: "   "},
		{Type: EventJoinRoom, RoomName: string(make([]byte, 65))},
		{Type: EventCreateRoom, RoomName: "bad\nname"},
		{Type: EventCreateRoom, RoomName: "ok", PlayerName: "a name that is far too long to fit on a seat"},
		{Type: EventJoinGame, PlayerName: "draw"},
		{Type: EventJoinGame, PlayerName: " Draw "},
	} {
		assert.ErrorIs(t, g.Dispatch(ctx, occ, in), ErrInvalidName)
	}
	assert.Len(t, rec.types(occ), 7)
	_, ok := g.RoomOf(occ)
	assert.False(t, ok)
}

func TestDrawBroadcastsFilteredViews(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()

	require.NoError(t, g.Dispatch(ctx, alice, Inbound{Type: EventDrawCard}))

	aliceEv, ok := rec.last(alice, EventGameUpdated)
	require.True(t, ok)
	bobEv, ok := rec.last(bob, EventGameUpdated)
	require.True(t, ok)

	aliceView, bobView := viewOf(t, aliceEv), viewOf(t, bobEv)
	require.NotNil(t, aliceView.Players[0].Hand)
	assert.Len(t, *aliceView.Players[0].Hand, 1)
	assert.Nil(t, aliceView.Players[1].Hand)

	assert.Nil(t, bobView.Players[0].Hand, "bob must not see alice's cards")
	require.NotNil(t, bobView.Players[0].HandSize)
	assert.Equal(t, 1, *bobView.Players[0].HandSize)
	assert.Nil(t, bobView.Players[0].Score)
	assert.Equal(t, 1, bobView.CurrentTurn)
	assert.Equal(t, game.DeckSize-1, bobView.DeckSize)

	var messages []string
	for _, a := range bobView.Announcements {
		messages = append(messages, a.Message)
	}
	assert.Equal(t, []string{"Alice drew a card", "Next turn: Bob"}, messages)

	// out of turn: only the requester hears about it
	rec.clear()
	err := g.Dispatch(ctx, alice, Inbound{Type: EventDrawCard})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	assert.Equal(t, []string{EventError}, rec.types(alice))
	assert.Empty(t, rec.types(bob))
	assert.Equal(t, int64(3), loadRoom(t, st, "currentGame").Version)
}

func TestDrawUntilGameOver(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()

	players := []uuid.UUID{alice, bob}
	for i := 0; i < 2*game.HandLimit; i++ {
		require.NoError(t, g.Draw(ctx, players[i%2]))
	}
	snap := loadRoom(t, st, "currentGame")
	require.True(t, snap.IsGameOver)

	ev, _ := rec.last(bob, EventGameUpdated)
	view := viewOf(t, ev)
	assert.True(t, view.IsGameOver)
	last := view.Announcements[len(view.Announcements)-1].Message
	if snap.IsDraw {
		assert.Equal(t, "The game ended in a draw", last)
	} else {
		assert.Equal(t, snap.Winner+" wins!", last)
	}

	assert.ErrorIs(t, g.Draw(ctx, alice), game.ErrGameOver)

	require.NoError(t, g.Dispatch(ctx, bob, Inbound{Type: EventResetGame}))
	snap = loadRoom(t, st, "currentGame")
	assert.False(t, snap.IsGameOver)
	assert.Len(t, snap.Deck, game.DeckSize)
	assert.Equal(t, alice, snap.Players[0].OccupantID)
	assert.Equal(t, bob, snap.Players[1].OccupantID)
	ev, _ = rec.last(alice, EventGameUpdated)
	assert.Equal(t, "Bob started a new game", viewOf(t, ev).Announcements[0].Message)
}

func TestDrawOutsideRoom(t *testing.T) {
	g, rec := newTestGateway(t, store.NewMemory(), Options{})
	occ := uuid.New()

	assert.ErrorIs(t, g.Dispatch(context.Background(), occ, Inbound{Type: EventDrawCard}), ErrNotInRoom)
	assert.ErrorIs(t, g.Dispatch(context.Background(), occ, Inbound{Type: EventLeaveRoom}), ErrNotInRoom)
	ev, ok := rec.last(occ, EventError)
	require.True(t, ok)
	assert.Equal(t, "Join a room first.", ev.Payload.(ErrorPayload).Message)
}

func TestResetWithoutSeatUsesDefaultRoom(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()
	require.NoError(t, g.Draw(ctx, alice))
	rec.clear()

	carol := uuid.New()
	require.NoError(t, g.Dispatch(ctx, carol, Inbound{Type: EventResetGame}))
	snap := loadRoom(t, st, "currentGame")
	assert.Empty(t, snap.Players[0].Hand)
	assert.Len(t, snap.Deck, game.DeckSize)
	assert.Equal(t, alice, snap.Players[0].OccupantID)
	assert.Equal(t, bob, snap.Players[1].OccupantID)

	ev, ok := rec.last(alice, EventGameUpdated)
	require.True(t, ok)
	assert.Equal(t, "A player started a new game", viewOf(t, ev).Announcements[0].Message)
	assert.Empty(t, rec.types(carol))
	_, ok = g.RoomOf(carol)
	assert.False(t, ok, "resetting does not seat the caller")
}

// TestConcurrentDrawsKeepEveryCard hammers one room from both seats and checks
// that every successful draw ended up in the stored snapshot.
func TestConcurrentDrawsKeepEveryCard(t *testing.T) {
	st := &flakyStore{Store: store.NewMemory(), loadDelay: time.Millisecond}
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)

	var wg sync.WaitGroup
	counts := make([]int64, 2)
	for i, occ := range []uuid.UUID{alice, bob} {
		for w := 0; w < 3; w++ {
			wg.Add(1)
			go func(i int, occ uuid.UUID) {
				defer wg.Done()
				for {
					err := g.Draw(context.Background(), occ)
					switch {
					case err == nil:
						atomic.AddInt64(&counts[i], 1)
					case errors.Is(err, game.ErrNotYourTurn):
						continue
					default:
						assert.ErrorIs(t, err, game.ErrGameOver)
						return
					}
				}
			}(i, occ)
		}
	}
	wg.Wait()

	snap := loadRoom(t, st, "currentGame")
	assert.True(t, snap.IsGameOver)
	assert.Equal(t, int(counts[0]), len(snap.Players[0].Hand))
	assert.Equal(t, int(counts[1]), len(snap.Players[1].Hand))
	total := int(counts[0] + counts[1])
	assert.Equal(t, game.DeckSize-total, len(snap.Deck))
	assert.Equal(t, int64(2+total), snap.Version)
	assert.Zero(t, g.locks.size())
}

// TestVersionConflictRetries simulates another instance writing between our load and save.
func TestVersionConflictRetries(t *testing.T) {
	mem := store.NewMemory()
	g, rec := newTestGateway(t, mem, Options{})
	alice, _ := seatTwo(t, g, rec)
	ctx := context.Background()

	// bump the stored version behind the gateway's back once
	racer := &racingStore{Store: mem}
	g.store = racer
	require.NoError(t, g.Draw(ctx, alice))

	snap := loadRoom(t, mem, "currentGame")
	assert.Equal(t, int64(4), snap.Version)
	assert.Len(t, snap.Players[0].Hand, 1)
	assert.Equal(t, 1, racer.saves)
}

// racingStore lets one foreign write land after the first load.
type racingStore struct {
	store.Store
	raced bool
	saves int
}

func (s *racingStore) Load(ctx context.Context, key string) (*models.RoomSnapshot, bool, error) {
	snap, ok, err := s.Store.Load(ctx, key)
	if err != nil || !ok || s.raced {
		return snap, ok, err
	}
	s.raced = true
	foreign := snap.Clone()
	foreign.Version++
	if err := s.Store.Save(ctx, key, foreign); err != nil {
		return nil, false, err
	}
	return snap, ok, nil
}

func (s *racingStore) Save(ctx context.Context, key string, snap *models.RoomSnapshot) error {
	err := s.Store.Save(ctx, key, snap)
	if err == nil {
		s.saves++
	}
	return err
}

func TestStoreFailureDoesNotBroadcast(t *testing.T) {
	st := &flakyStore{Store: store.NewMemory()}
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()

	st.failSave.Store(true)
	err := g.Dispatch(ctx, alice, Inbound{Type: EventDrawCard})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, []string{EventError}, rec.types(alice))
	ev, _ := rec.last(alice, EventError)
	assert.Equal(t, "Something went wrong. Please try again.", ev.Payload.(ErrorPayload).Message)
	assert.Empty(t, rec.types(bob))

	st.failSave.Store(false)
	st.failLoad.Store(true)
	err = g.Dispatch(ctx, bob, Inbound{Type: EventResetGame})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, rec.types(alice)[1:])

	st.failLoad.Store(false)
	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, int64(2), snap.Version)
	assert.Empty(t, snap.Players[0].Hand)
}

func TestLeaveFreesSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()
	require.NoError(t, g.Draw(ctx, alice))
	rec.clear()

	require.NoError(t, g.Dispatch(ctx, alice, Inbound{Type: EventLeaveRoom}))
	assert.Equal(t, []string{EventRoomLeft}, rec.types(alice))
	assert.Equal(t, []string{EventPlayerLeft, EventGameUpdated}, rec.types(bob))
	left, _ := rec.last(bob, EventPlayerLeft)
	assert.Equal(t, PlayerLeftPayload{PlayerID: alice, SeatIndex: 0, Name: "Alice"}, left.Payload)

	_, ok := g.RoomOf(alice)
	assert.False(t, ok)
	snap := loadRoom(t, st, "currentGame")
	assert.False(t, snap.Players[0].Occupied())
	assert.Len(t, snap.Players[0].Hand, 1, "hand stays with the seat")

	carol := uuid.New()
	require.NoError(t, g.JoinGame(ctx, carol, "Carol"))
	joined, _ := rec.last(carol, EventRoomJoined)
	assert.Equal(t, 0, joined.Payload.(RoomJoinedPayload).SeatIndex)
}

func TestSwitchingRoomsReleasesPreviousSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()

	require.NoError(t, g.CreateRoom(ctx, alice, "side", ""))
	assert.False(t, loadRoom(t, st, "currentGame").Players[0].Occupied())
	assert.Equal(t, alice, loadRoom(t, st, "side").Players[0].OccupantID)
	assert.Equal(t, "Player 1", loadRoom(t, st, "side").Players[0].DisplayName)
	assert.Contains(t, rec.types(bob), EventPlayerLeft)
	assert.NotContains(t, rec.types(alice), EventRoomLeft)

	room, _ := g.RoomOf(alice)
	assert.Equal(t, "side", room)
}

func TestFailedSwitchKeepsCurrentSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()
	require.NoError(t, g.Draw(ctx, alice))

	// a second full room
	dave, erin := uuid.New(), uuid.New()
	require.NoError(t, g.CreateRoom(ctx, dave, "full", "Dave"))
	require.NoError(t, g.JoinRoom(ctx, erin, "full", "Erin"))
	before := loadRoom(t, st, "currentGame")
	rec.clear()

	cases := []struct {
		name string
		join func() error
		want error
	}{
		{"missing room", func() error { return g.JoinRoom(ctx, alice, "no-such-room", "") }, ErrRoomNotFound},
		{"existing room", func() error { return g.CreateRoom(ctx, alice, "full", "") }, ErrRoomExists},
		{"full room", func() error { return g.JoinRoom(ctx, alice, "full", "") }, game.ErrRoomFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.join(), tc.want)

			snap := loadRoom(t, st, "currentGame")
			assert.Equal(t, before.Version, snap.Version, "nothing saved")
			assert.Equal(t, alice, snap.Players[0].OccupantID)
			assert.Len(t, snap.Players[0].Hand, 1)
			room, ok := g.RoomOf(alice)
			assert.True(t, ok)
			assert.Equal(t, "currentGame", room)
			assert.Empty(t, rec.types(bob))
		})
	}

}

func TestSwitchFailingToSaveKeepsCurrentSeat(t *testing.T) {
	st := &flakyStore{Store: store.NewMemory()}
	g, rec := newTestGateway(t, st, Options{})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()

	st.failSave.Store(true)
	assert.ErrorIs(t, g.CreateRoom(ctx, alice, "elsewhere", ""), ErrStoreUnavailable)
	st.failSave.Store(false)

	room, ok := g.RoomOf(alice)
	assert.True(t, ok)
	assert.Equal(t, "currentGame", room)
	assert.Equal(t, alice, loadRoom(t, st, "currentGame").Players[0].OccupantID)
	assert.Empty(t, rec.types(bob))
}

func TestDisconnectWithinGraceKeepsSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{DisconnectGrace: time.Hour})
	alice, bob := seatTwo(t, g, rec)
	ctx := context.Background()
	require.NoError(t, g.Draw(ctx, alice))
	rec.clear()

	g.Disconnect(alice)
	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, alice, snap.Players[0].OccupantID)
	assert.False(t, snap.Players[0].Connected)
	assert.NotZero(t, snap.Players[0].DisconnectedAt)

	upd, ok := rec.last(bob, EventGameUpdated)
	require.True(t, ok)
	view := viewOf(t, upd)
	assert.False(t, view.Players[0].Connected)
	assert.Equal(t, "Alice disconnected", view.Announcements[0].Message)
	assert.Empty(t, rec.types(alice))

	// bob keeps playing while alice is away; alice gets nothing
	require.NoError(t, g.Draw(ctx, bob))
	assert.Empty(t, rec.types(alice))

	require.NoError(t, g.Resume(ctx, alice))
	assert.Equal(t, []string{EventRoomJoined, EventGameLoaded}, rec.types(alice))
	loaded, _ := rec.last(alice, EventGameLoaded)
	aliceView := viewOf(t, loaded)
	require.NotNil(t, aliceView.Players[0].Hand)
	assert.Len(t, *aliceView.Players[0].Hand, 1)
	assert.True(t, aliceView.Players[0].Connected)

	g.mu.Lock()
	assert.Empty(t, g.timers)
	g.mu.Unlock()
}

func TestGraceExpiryReleasesSeat(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{DisconnectGrace: 20 * time.Millisecond})
	alice, bob := seatTwo(t, g, rec)

	g.Disconnect(alice)
	require.Eventually(t, func() bool {
		snap, _, err := st.Load(context.Background(), "currentGame")
		return err == nil && !snap.Players[0].Occupied()
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := rec.last(bob, EventPlayerLeft)
		return ok
	}, time.Second, 10*time.Millisecond)
	_, ok := g.RoomOf(alice)
	assert.False(t, ok)

	// too late: the seat is gone, so resuming does nothing
	assert.NoError(t, g.Resume(context.Background(), alice))
	assert.False(t, loadRoom(t, st, "currentGame").Players[0].Occupied())
}

func TestGraceExpiryIgnoresReturnedOccupant(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{DisconnectGrace: 30 * time.Millisecond})
	alice, _ := seatTwo(t, g, rec)

	g.Disconnect(alice)
	require.NoError(t, g.JoinGame(context.Background(), alice, ""))
	time.Sleep(80 * time.Millisecond)

	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, alice, snap.Players[0].OccupantID)
	assert.True(t, snap.Players[0].Connected)
}

func TestLateDisconnectAfterReconnectIsIgnored(t *testing.T) {
	for _, grace := range []time.Duration{0, time.Hour} {
		presence := &presenceSet{}
		st := store.NewMemory()
		g, rec := newTestGateway(t, st, Options{DisconnectGrace: grace, Presence: presence})
		alice, bob := seatTwo(t, g, rec)

		// the new connection is attached before the old one reports its loss
		presence.set(alice, true)
		g.Disconnect(alice)

		snap := loadRoom(t, st, "currentGame")
		assert.Equal(t, int64(2), snap.Version, "grace %s: nothing saved", grace)
		assert.Equal(t, alice, snap.Players[0].OccupantID)
		assert.True(t, snap.Players[0].Connected)
		assert.Empty(t, rec.types(bob))
		g.mu.Lock()
		assert.Empty(t, g.timers)
		g.mu.Unlock()
		room, ok := g.RoomOf(alice)
		assert.True(t, ok)
		assert.Equal(t, "currentGame", room)
	}
}

func TestGraceExpirySparesOnlineOccupant(t *testing.T) {
	presence := &presenceSet{}
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{DisconnectGrace: 20 * time.Millisecond, Presence: presence})
	alice, _ := seatTwo(t, g, rec)

	g.Disconnect(alice)
	presence.set(alice, true)
	time.Sleep(80 * time.Millisecond)

	snap := loadRoom(t, st, "currentGame")
	assert.Equal(t, alice, snap.Players[0].OccupantID)
}

func TestDisconnectWithoutGraceReleases(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{DisconnectGrace: 0})
	alice, bob := seatTwo(t, g, rec)

	g.Disconnect(alice)
	assert.False(t, loadRoom(t, st, "currentGame").Players[0].Occupied())
	assert.Contains(t, rec.types(bob), EventPlayerLeft)
	assert.Empty(t, rec.types(alice))

	// unknown occupants are ignored
	g.Disconnect(uuid.New())
}

func TestActionLog(t *testing.T) {
	sink := &actionSink{}
	st := store.NewMemory()
	rec := newRecorder()
	g := New(st, rec, Options{Actions: sink, Logger: quietLogger()})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, g.JoinGame(ctx, alice, "Alice"))
	require.NoError(t, g.JoinGame(ctx, bob, "Bob"))
	require.NoError(t, g.Draw(ctx, alice))
	require.NoError(t, g.Reset(ctx, bob))
	require.NoError(t, g.Leave(ctx, bob))
	g.Close()

	assert.Equal(t, map[string]int{
		models.ActionJoin:  2,
		models.ActionDraw:  1,
		models.ActionReset: 1,
		models.ActionLeave: 1,
	}, sink.types())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, a := range sink.actions {
		assert.Equal(t, "currentGame", a.Room)
		assert.NotZero(t, a.Version)
		assert.NotZero(t, a.Timestamp)
	}
}

func TestSummary(t *testing.T) {
	st := store.NewMemory()
	g, rec := newTestGateway(t, st, Options{})
	ctx := context.Background()

	_, err := g.Summary(ctx, "currentGame")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	alice := uuid.New()
	require.NoError(t, g.JoinGame(ctx, alice, "Alice"))
	sum, err := g.Summary(ctx, "currentGame")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseWaiting, sum.Phase)
	assert.Equal(t, 1, sum.Occupied)
	assert.Equal(t, game.DeckSize, sum.DeckSize)
	require.Len(t, sum.Seats, 2)
	assert.Equal(t, "Alice", sum.Seats[0].Name)
	assert.True(t, sum.Seats[0].Connected)
	assert.Equal(t, "Player 2", sum.Seats[1].Name)

	rec.clear()
	_, err = g.Summary(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDispatchPingAndUnknown(t *testing.T) {
	g, rec := newTestGateway(t, store.NewMemory(), Options{})
	occ := uuid.New()

	require.NoError(t, g.Dispatch(context.Background(), occ, Inbound{Type: EventPing}))
	err := g.Dispatch(context.Background(), occ, Inbound{Type: "shuffle"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Equal(t, []string{EventPong, EventError}, rec.types(occ))
}
