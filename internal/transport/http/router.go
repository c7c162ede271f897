package httptransport

import (
	"expvar"
	"net/http"
	"sort"

	"chiptally/internal/app/rooms"
	"chiptally/internal/config"
	"chiptally/internal/mcpserver"
	"chiptally/internal/roomstream"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *rooms.Service, cfg config.ServerConfig, clock quartz.Clock) *chi.Mux {
	roomHandlers := NewRoomHandlers(svc)
	storeHandlers := NewStoreHandlers(svc.Store())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", Health(svc.Store()))

	if cfg.MCPEnabled {
		mcpSrv := mcpserver.New(svc)
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	} else {
		log.Info().Msg("mcp endpoint disabled")
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Post("/rooms", roomHandlers.Create())
		r.Get("/rooms/{room_id}", roomHandlers.Get())
		r.Get("/rooms/{room_id}/events", roomstream.EventsHandler(svc.Store(), clock))
		r.Patch("/rooms/{room_id}/config", roomHandlers.UpdateConfig())
		r.Post("/rooms/{room_id}/players", roomHandlers.AddPlayer())
		r.Patch("/rooms/{room_id}/players/{player_id}", roomHandlers.UpdatePlayer())
		r.Delete("/rooms/{room_id}/players/{player_id}", roomHandlers.DeletePlayer())

		r.Get("/store/subscribe", storeHandlers.Subscribe())
		r.Group(func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/store/value", storeHandlers.Read())
			r.Put("/store/value", storeHandlers.Write())
			r.Delete("/store/value", storeHandlers.Remove())
			r.Patch("/store", storeHandlers.MultiUpdate())
			r.Get("/store/keys", storeHandlers.Keys())
		})

		r.Route("/debug", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

// Routes lists every registered route as "METHOD pattern", sorted.
func Routes(r chi.Routes) ([]string, error) {
	var routes []string
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	sort.Strings(routes)
	return routes, err
}

func LogRoutes(r chi.Routes) {
	routes, err := Routes(r)
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	log.Info().Int("count", len(routes)).Strs("routes", routes).Msg("routes registered")
}
