package rooms

import (
	"context"
	"errors"
	"time"

	"chiptally/internal/room"
	"chiptally/internal/store"

	"github.com/rs/zerolog/log"
)

var ErrListingUnsupported = errors.New("listing_unsupported")

// StartJanitor removes expired rooms every interval until ctx is done.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s.clock.TickerFunc(ctx, interval, func() error {
		if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("expired room sweep failed")
		}
		return nil
	}, "janitor")
}

// SweepExpired deletes every room whose expiresAt has passed and returns how
// many were removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	lister, ok := s.store.(store.Lister)
	if !ok {
		return 0, ErrListingUnsupported
	}
	metricJanitorSweeps.Add(1)
	roomIDs, err := lister.Keys(ctx, room.Root)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now().UnixMilli()
	removed := 0
	var errs []error
	for _, id := range roomIDs {
		v, ok, err := s.store.ReadOnce(ctx, room.ExpiresAtPath(id))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expiresAt, isNum := v.(float64)
		if !ok || !isNum || int64(expiresAt) > now {
			continue
		}
		if err := s.store.Remove(ctx, room.Path(id)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		log.Info().Str("room_id", id).Msg("expired room removed")
	}
	metricRoomsExpired.Add(int64(removed))
	return removed, errors.Join(errs...)
}
