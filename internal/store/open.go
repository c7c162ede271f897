package store

import (
	"context"
	"fmt"

	"chiptally/internal/config"

	"github.com/rs/zerolog/log"
)

// Open returns the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.ServerConfig) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		log.Info().Str("driver", config.StoreMemory).Msg("room store opened")
		return NewMemory(), nil
	case config.StoreSQLite:
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info().Str("driver", config.StoreSQLite).Str("path", cfg.SQLitePath).Msg("room store opened")
		return s, nil
	case config.StorePostgres:
		p, err := NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("ping postgres store: %w", err)
		}
		if err := p.Listen(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("listen postgres store: %w", err)
		}
		log.Info().Str("driver", config.StorePostgres).Msg("room store opened")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
