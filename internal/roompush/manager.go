package roompush

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"chiptally/internal/room"
	"chiptally/internal/roompush/platforms"
	"chiptally/internal/store"
	"chiptally/internal/subscription"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
)

// roomWatch follows one room. Its fields are touched only from the
// controller's watcher, which the controller serializes.
type roomWatch struct {
	roomID  string
	ctrl    *subscription.Controller
	unwatch func()

	seeded  bool
	present bool
	seen    map[string]struct{}
}

type panelState struct {
	msg      FormattedMessage
	dirty    bool
	terminal bool
}

type Option func(*Manager)

func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

type Manager struct {
	cfg      Config
	store    store.Store
	clock    quartz.Clock
	router   Router
	adapters map[string]platforms.Adapter

	dispatchCh chan pushJob
	retryQ     *retryQueue
	breakers   *breakers
	done       chan struct{}

	mu          sync.Mutex
	started     bool
	rooms       map[string]*roomWatch
	panelByRoom map[string]*panelState
}

func NewManager(cfg Config, st store.Store, opts ...Option) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 512
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.PanelUpdateInterval <= 0 {
		cfg.PanelUpdateInterval = 2 * time.Second
	}
	if cfg.ConfigReload <= 0 {
		cfg.ConfigReload = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	m := &Manager{
		cfg:   cfg,
		store: st,
		clock: quartz.NewReal(),
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"webhook": platforms.NewWebhookAdapter(client),
		},
		dispatchCh:  make(chan pushJob, cfg.DispatchBuffer),
		done:        make(chan struct{}),
		breakers:    newBreakers(cfg.FailureThreshold, cfg.CircuitOpenDuration),
		rooms:       map[string]*roomWatch{},
		panelByRoom: map[string]*panelState{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.retryQ = newRetryQueue(m.clock, m.dispatchCh, m.done)
	return m
}

// Start subscribes to every target room and runs the delivery workers until
// ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}
	if m.store == nil {
		return subscription.ErrNotConfigured
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	m.syncRooms(ctx)
	m.clock.TickerFunc(ctx, m.cfg.PanelUpdateInterval, func() error {
		m.flushPanels()
		return nil
	}, "roompush", "panels")
	if m.cfg.ConfigPath != "" {
		m.watchConfig(ctx)
	}
	go func() {
		<-ctx.Done()
		close(m.done)
		m.stopAllRooms()
	}()
	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("room push started")
	return nil
}

// syncRooms starts a subscription for every newly targeted room and stops
// the ones no target watches any more. Controller calls happen outside m.mu
// because watchers take m.mu while the controller holds its own lock.
func (m *Manager) syncRooms(ctx context.Context) {
	wanted := roomIDs(m.currentTargets())

	m.mu.Lock()
	var stale, fresh []*roomWatch
	for id, rw := range m.rooms {
		if _, ok := wanted[id]; !ok {
			stale = append(stale, rw)
			delete(m.rooms, id)
			delete(m.panelByRoom, id)
		}
	}
	for id := range wanted {
		if _, ok := m.rooms[id]; ok {
			continue
		}
		rw := &roomWatch{
			roomID: id,
			ctrl:   subscription.New(m.store, subscription.WithClock(m.clock)),
			seen:   map[string]struct{}{},
		}
		m.rooms[id] = rw
		fresh = append(fresh, rw)
	}
	m.mu.Unlock()

	for _, rw := range stale {
		rw.stop()
		log.Debug().Str("room_id", rw.roomID).Msg("room push unsubscribed")
	}
	for _, rw := range fresh {
		rw.unwatch = rw.ctrl.Watch(func(s subscription.State) { m.onState(rw, s) })
		rw.ctrl.SetRoom(ctx, rw.roomID)
		log.Debug().Str("room_id", rw.roomID).Msg("room push subscribed")
	}
}

func (rw *roomWatch) stop() {
	if rw.unwatch != nil {
		rw.unwatch()
	}
	rw.ctrl.Stop()
}

func (m *Manager) stopAllRooms() {
	m.mu.Lock()
	all := make([]*roomWatch, 0, len(m.rooms))
	for _, rw := range m.rooms {
		all = append(all, rw)
	}
	m.rooms = map[string]*roomWatch{}
	m.panelByRoom = map[string]*panelState{}
	m.mu.Unlock()

	for _, rw := range all {
		rw.stop()
	}
}

// onState runs under the controller lock, so it only records state and
// queues jobs without blocking.
func (m *Manager) onState(rw *roomWatch, s subscription.State) {
	if s.RoomID != rw.roomID || s.Loading {
		return
	}
	if s.Err != nil {
		if errors.Is(s.Err, subscription.ErrRoomNotFound) && rw.present {
			rw.present = false
			rw.seeded = false
			rw.seen = map[string]struct{}{}
			m.setPanel(rw.roomID, FormatClosed(rw.roomID, m.clock.Now()), true)
		}
		return
	}
	if s.Room == nil {
		return
	}
	rw.present = true

	// The first view only records what already happened.
	if rw.seeded {
		for i := len(s.History) - 1; i >= 0; i-- {
			entry := s.History[i]
			if _, ok := rw.seen[entry.ID]; ok {
				continue
			}
			m.pushHistory(rw.roomID, entry)
		}
	}
	rw.seeded = true
	rw.seen = make(map[string]struct{}, len(s.History))
	for _, entry := range s.History {
		rw.seen[entry.ID] = struct{}{}
	}
	m.setPanel(rw.roomID, FormatStandings(*s.Room, s.Totals), false)
}

func (m *Manager) pushHistory(roomID string, entry room.HistoryEntry) {
	targets := m.router.MatchTargets(m.currentTargets(), roomID, KindHistory)
	for _, target := range targets {
		job := pushJob{Target: target, Formatted: FormatHistory(roomID, entry)}
		if !m.enqueue(job) {
			metricPushDroppedTotal.Add(1)
		}
	}
}

func (m *Manager) setPanel(roomID string, msg FormattedMessage, terminal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return
	}
	m.panelByRoom[roomID] = &panelState{msg: msg, dirty: true, terminal: terminal}
}

// flushPanels queues the latest standings of every room that changed since
// the previous flush. A panel whose jobs could not be queued stays dirty.
func (m *Manager) flushPanels() {
	targets := m.currentTargets()
	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID, panel := range m.panelByRoom {
		if !panel.dirty {
			continue
		}
		matched := m.router.MatchTargets(targets, roomID, KindStandings)
		queued := true
		for _, target := range matched {
			job := pushJob{Target: target, Formatted: panel.msg, PanelTerminal: panel.terminal}
			if !m.enqueue(job) {
				metricPushDroppedTotal.Add(1)
				queued = false
			}
		}
		if !queued {
			continue
		}
		panel.dirty = false
		if panel.terminal {
			delete(m.panelByRoom, roomID)
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	case m.dispatchCh <- job:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Set(int64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}

func (m *Manager) currentTargets() []PushTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushTarget, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

// watchConfig re-reads the targets file on every tick and resubscribes when
// its content changed.
func (m *Manager) watchConfig(ctx context.Context) {
	lastRaw := ""
	if raw, err := os.ReadFile(m.cfg.ConfigPath); err == nil {
		lastRaw = string(bytes.TrimSpace(raw))
	}
	m.clock.TickerFunc(ctx, m.cfg.ConfigReload, func() error {
		raw, err := os.ReadFile(m.cfg.ConfigPath)
		if err != nil {
			metricPushConfigReloadError.Add(1)
			return nil
		}
		nextRaw := string(bytes.TrimSpace(raw))
		if nextRaw == lastRaw {
			return nil
		}
		targets, err := parseTargets(m.cfg.ConfigPath, raw)
		if err != nil {
			metricPushConfigReloadError.Add(1)
			log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("room push config reload failed")
			return nil
		}
		m.mu.Lock()
		m.cfg.Targets = targets
		m.mu.Unlock()
		lastRaw = nextRaw
		metricPushConfigReloadTotal.Add(1)
		m.syncRooms(ctx)
		return nil
	}, "roompush", "reload")
}
