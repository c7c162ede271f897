// Package ids generates room codes, player ids and history entry ids.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	mrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	RoomIDLength   = 6
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxRoomIDBytes = 64
)

// Provider is the source of identifiers used when creating rooms and players.
type Provider interface {
	RoomID() string
	PlayerID() string
	HistoryID(ts time.Time) string
}

// Default returns the process-wide random provider.
func Default() Provider { return defaultProvider }

var defaultProvider = &randomProvider{
	fallback: mrand.New(mrand.NewSource(time.Now().UnixNano())),
	entropy:  ulid.Monotonic(rand.Reader, 0),
}

type randomProvider struct {
	mu       sync.Mutex
	fallback *mrand.Rand
	entropy  *ulid.MonotonicEntropy
}

func (p *randomProvider) RoomID() string {
	var b strings.Builder
	b.Grow(RoomIDLength)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := 0; i < RoomIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		idx := 0
		if err != nil {
			idx = p.fallbackIntn(len(roomIDAlphabet))
		} else {
			idx = int(n.Int64())
		}
		b.WriteByte(roomIDAlphabet[idx])
	}
	return b.String()
}

func (p *randomProvider) PlayerID() string {
	u, err := uuid.NewRandom()
	if err != nil {
		var raw [4]byte
		p.mu.Lock()
		_, _ = p.fallback.Read(raw[:])
		p.mu.Unlock()
		return "player_" + hex.EncodeToString(raw[:])
	}
	return "player_" + strings.ReplaceAll(u.String(), "-", "")[:8]
}

func (p *randomProvider) HistoryID(ts time.Time) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), p.entropy)
	if err != nil {
		id = ulid.MustNew(ulid.Timestamp(ts), p.fallback)
	}
	return "history_" + strings.ToLower(id.String())
}

func (p *randomProvider) fallbackIntn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fallback.Intn(n)
}

// ValidRoomID reports whether id can be used as a path segment under rooms/.
func ValidRoomID(id string) bool {
	if id == "" || len(id) > maxRoomIDBytes {
		return false
	}
	if strings.TrimSpace(id) != id {
		return false
	}
	return !strings.ContainsAny(id, "/.#$[]")
}
