// Package subscription owns the live subscription to the room being viewed
// and publishes its normalized state.
package subscription

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"chiptally/internal/history"
	"chiptally/internal/ids"
	"chiptally/internal/ledger"
	"chiptally/internal/room"
	"chiptally/internal/store"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
)

// State is what a viewer renders. Room is nil while loading and on error.
type State struct {
	RoomID  string
	Room    *room.Data
	History []room.HistoryEntry
	Totals  ledger.Totals
	Loading bool
	Err     error
}

type Option func(*Controller)

func WithClock(clock quartz.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithAccumulator(acc *history.Accumulator) Option {
	return func(c *Controller) { c.acc = acc }
}

// Controller keeps at most one store subscription alive: the one for the
// current room id. Callbacks from a released subscription are dropped.
type Controller struct {
	store store.Store
	clock quartz.Clock
	acc   *history.Accumulator

	mu       sync.Mutex
	gen      uint64
	release  func()
	state    State
	watchers map[int]func(State)
	nextID   int

	current atomic.Pointer[State]
}

func New(st store.Store, opts ...Option) *Controller {
	c := &Controller{
		store:    st,
		clock:    quartz.NewReal(),
		watchers: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.acc == nil {
		c.acc = history.NewAccumulator(room.MaxHistoryEntries)
	}
	c.current.Store(&State{})
	return c
}

// SetRoom switches to roomID. The previous view is cleared and the loading
// state published before this returns; the previous subscription is released
// exactly once.
func (c *Controller) SetRoom(ctx context.Context, roomID string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.release
	c.release = nil
	c.acc.Reset(roomID)
	switch {
	case c.store == nil:
		c.setLocked(State{RoomID: roomID, Err: ErrNotConfigured})
	case !ids.ValidRoomID(roomID):
		c.setLocked(State{RoomID: roomID, Err: ErrMissingRoomID})
	default:
		c.setLocked(State{RoomID: roomID, Loading: true})
	}
	c.mu.Unlock()

	if old != nil {
		old()
	}
	if c.store == nil || !ids.ValidRoomID(roomID) {
		return
	}

	unsubscribe, err := c.store.Subscribe(ctx, room.Path(roomID),
		func(value any, exists bool) { c.onValue(gen, roomID, value, exists) },
		func(err error) { c.onError(gen, roomID, err) },
	)
	c.mu.Lock()
	if err != nil {
		if gen == c.gen {
			c.setLocked(State{RoomID: roomID, Err: fmt.Errorf("subscribe %s: %w", roomID, err)})
		}
		c.mu.Unlock()
		log.Warn().Err(err).Str("room_id", roomID).Msg("room subscribe failed")
		return
	}
	if gen != c.gen {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.release = unsubscribe
	c.mu.Unlock()
	log.Debug().Str("room_id", roomID).Msg("room subscription started")
}

// Stop releases the active subscription. The last state stays readable.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	old := c.release
	c.release = nil
	c.mu.Unlock()
	if old != nil {
		old()
	}
}

// State returns the latest published state. It is safe to call from a
// watcher.
func (c *Controller) State() State {
	return *c.current.Load()
}

// Watch registers fn for every published state and calls it once with the
// current one. Watchers run while the controller is locked and must not call
// SetRoom, Stop or Watch.
func (c *Controller) Watch(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	fn(c.state)
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) onValue(gen uint64, roomID string, value any, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if !exists {
		c.acc.Observe(roomID, nil, c.clock.Now())
		c.setLocked(State{RoomID: roomID, Err: ErrRoomNotFound})
		return
	}
	snap, err := room.DecodeSnapshot(value)
	if err != nil {
		c.setLocked(State{RoomID: roomID, Err: err})
		return
	}
	now := c.clock.Now()
	data := room.Normalize(roomID, snap, now)
	c.setLocked(State{
		RoomID:  roomID,
		Room:    &data,
		History: c.acc.Observe(roomID, &data, now),
		Totals:  ledger.ComputeTotals(data.Players, data.Config),
	})
}

func (c *Controller) onError(gen uint64, roomID string, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	old := c.release
	c.release = nil
	c.gen++
	c.setLocked(State{RoomID: roomID, Err: err})
	c.mu.Unlock()
	log.Warn().Err(err).Str("room_id", roomID).Msg("room subscription failed")
	if old != nil {
		old()
	}
}

func (c *Controller) setLocked(s State) {
	c.state = s
	c.current.Store(&s)
	for _, fn := range c.watchers {
		fn(s)
	}
}
