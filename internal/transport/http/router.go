package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apppublic "lobbysync/internal/app/public"
	appsession "lobbysync/internal/app/session"
	"lobbysync/internal/config"
	"lobbysync/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the store, session, public and admin endpoints. A nil
// storeHandlers gets a fresh set bound to st.
func NewRouter(st store.Store, cfg config.ServerConfig, sessionSvc *appsession.Service, storeHandlers *StoreHandlers) *chi.Mux {
	if storeHandlers == nil {
		storeHandlers = NewStoreHandlers(st)
	}
	publicSvc := apppublic.NewService(st, cfg.MaxParticipants, cfg.MatchScanLimit)

	sessionHandlers := NewSessionHandlers(sessionSvc)
	publicHandlers := NewPublicHandlers(publicSvc)
	adminHandlers := NewAdminHandlers(st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		storeHandlers.Routes(r)

		r.Post("/sessions", sessionHandlers.Create())
		r.Post("/sessions/join", sessionHandlers.Join())
		r.Post("/sessions/match", sessionHandlers.Match())
		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/", sessionHandlers.Get())
			r.Get("/view", sessionHandlers.View())
			r.Post("/bots", sessionHandlers.AddBot())
			r.Delete("/participants/{participant_id}", sessionHandlers.Leave())
			r.Post("/ready", sessionHandlers.Ready())
			r.Post("/start", sessionHandlers.Start())
			r.Post("/turn-end", sessionHandlers.TurnEnd())
			r.Post("/moves", sessionHandlers.Move())
			r.Post("/game", sessionHandlers.SwitchGame())
		})

		r.Get("/public/sessions", publicHandlers.Sessions())
		r.Get("/public/sessions/{session_id}/leaderboard", publicHandlers.Leaderboard())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(cfg.MaxCaptureBytes))
			r.Post("/admin/chips", adminHandlers.Topup())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
