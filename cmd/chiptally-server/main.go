package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chiptally/internal/app/rooms"
	"chiptally/internal/config"
	"chiptally/internal/logging"
	"chiptally/internal/roompush"
	"chiptally/internal/store"
	httptransport "chiptally/internal/transport/http"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()

	clock := quartz.NewReal()
	svc := newService(st, cfg, clock)
	svc.StartJanitor(ctx, cfg.JanitorInterval)

	pushCfg, err := roompush.ConfigFromServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("room push config failed")
	}
	if err := roompush.NewManager(pushCfg, st, roompush.WithClock(clock)).Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("room push start failed")
	}

	r := httptransport.NewRouter(svc, cfg, clock)
	httptransport.LogRoutes(r)

	if err := serve(ctx, cfg.HTTPAddr, r); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func newService(st store.Store, cfg config.ServerConfig, clock quartz.Clock) *rooms.Service {
	return rooms.NewService(st, rooms.Options{
		Clock:          clock,
		TTL:            cfg.RoomTTL(),
		CreateAttempts: cfg.CreateRoomAttempts,
	})
}

// serve runs until ctx is cancelled, then drains in-flight requests.
// Streaming handlers end when their request context is cancelled.
func serve(ctx context.Context, addr string, r *chi.Mux) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
