package commit

import (
	"errors"
	"fmt"
	"strings"

	"chiptally/internal/ledger"
)

var (
	ErrEmptyName        = errors.New("empty_name")
	ErrInvalidNumber    = ledger.ErrInvalidNumber
	ErrInvalidChipValue = ledger.ErrInvalidChipValue
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrMissingRoomID    = errors.New("missing_room_id")
	ErrPlayerNotFound   = errors.New("player_not_found")
)

// CommitError wraps a store failure for one commit.
type CommitError struct {
	Op       string
	RoomID   string
	PlayerID string
	Err      error
}

func (e *CommitError) Error() string {
	target := e.RoomID
	if e.PlayerID != "" {
		target += "/" + e.PlayerID
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// PlayerWriteError is one failed write of a settings fan-out.
type PlayerWriteError struct {
	PlayerID string
	Err      error
}

func (e *PlayerWriteError) Error() string {
	return fmt.Sprintf("player %s: %v", e.PlayerID, e.Err)
}

func (e *PlayerWriteError) Unwrap() error { return e.Err }

// FanOutError reports every player whose derived buy-in could not be
// rewritten after a chipsPerHand change. The config itself was saved.
type FanOutError struct {
	RoomID   string
	Attempts int
	Failures []*PlayerWriteError
}

func (e *FanOutError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.PlayerID
	}
	return fmt.Sprintf("room %s: %d of %d buy-in updates failed (%s): %v",
		e.RoomID, len(e.Failures), e.Attempts, strings.Join(ids, ", "), e.Joined())
}

// Joined merges the per-player errors.
func (e *FanOutError) Joined() error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (e *FanOutError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
