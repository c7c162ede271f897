package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type readFunc func(ctx context.Context, path string) (any, bool, error)

// hub fans change notifications out to subscriptions. A notification only
// marks a subscription dirty; its goroutine then re-reads the path, so a slow
// consumer sees the latest value instead of a backlog.
type hub struct {
	read   readFunc
	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

type subscription struct {
	hub     *hub
	key     string
	path    string
	onValue ValueFunc
	onError ErrorFunc
	dirty   chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func newHub(read readFunc) *hub {
	return &hub{read: read, subs: map[string]map[*subscription]struct{}{}}
}

func (h *hub) subscribe(ctx context.Context, path string, onValue ValueFunc, onError ErrorFunc) (func(), error) {
	key, _, err := docKey(path)
	if err != nil {
		return nil, err
	}
	s := &subscription{
		hub:     h,
		key:     key,
		path:    path,
		onValue: onValue,
		onError: onError,
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[key] == nil {
		h.subs[key] = map[*subscription]struct{}{}
	}
	h.subs[key][s] = struct{}{}
	h.mu.Unlock()

	metricSubscriptionsActive.Add(1)
	s.dirty <- struct{}{}
	go s.run(ctx)
	return s.release, nil
}

// notify marks every subscription on the given document dirty.
func (h *hub) notify(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[key] {
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.release()
	}
}

func (h *hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.key]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
}

func (s *subscription) release() {
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.done)
		s.hub.remove(s)
		metricSubscriptionsActive.Add(-1)
	})
}

func (s *subscription) run(ctx context.Context) {
	var (
		last      []byte
		delivered bool
	)
	for {
		select {
		case <-ctx.Done():
			s.release()
			return
		case <-s.done:
			return
		case <-s.dirty:
		}
		value, exists, err := s.hub.read(ctx, s.path)
		if s.stopped.Load() {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				s.release()
				return
			}
			log.Warn().Err(err).Str("path", s.path).Msg("subscription read failed")
			if s.onError != nil {
				s.onError(err)
			}
			s.release()
			return
		}
		encoded, _ := json.Marshal(value)
		if delivered && bytes.Equal(encoded, last) {
			continue
		}
		last = encoded
		delivered = true
		metricSnapshotPushes.Add(1)
		s.onValue(value, exists)
	}
}
