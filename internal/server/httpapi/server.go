package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hipnode/hipnode/internal/logging"
	"github.com/hipnode/hipnode/internal/server/auth"
	"github.com/hipnode/hipnode/internal/server/realtime"
	"github.com/hipnode/hipnode/internal/server/services"
)

// Server wires the identity core to its HTTP surface.
type Server struct {
	address        string
	authService    *services.AuthService
	profileService *services.ProfileService
	issuer         *auth.SessionIssuer
	cookies        *auth.CookieWriter
	gate           *Gate
	hub            *realtime.Hub
	metrics        *Metrics
	logger         logging.Logger
}

func NewServer(address string, authService *services.AuthService, profileService *services.ProfileService,
	issuer *auth.SessionIssuer, cookies *auth.CookieWriter, gate *Gate, hub *realtime.Hub,
	registry prometheus.Registerer, logger logging.Logger) *Server {
	return &Server{
		address:        address,
		authService:    authService,
		profileService: profileService,
		issuer:         issuer,
		cookies:        cookies,
		gate:           gate,
		hub:            hub,
		metrics:        NewMetrics(registry),
		logger:         logger.With("module", "http_server"),
	}
}

// Router assembles the chi route tree: the auth API, the gated page routes,
// the websocket subscription, and the metrics endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/payload", s.handlePayload)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/session", s.handleSession)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.gate.RequireSession)
			r.Post("/profile/image-upload", s.handleImageUpload)
			r.Get("/profile/image-url", s.handleImageURL)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.gate.RequireSession)
		r.Get("/ws/notifications", s.hub.Subscribe)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Page navigation goes through the access gate.
	r.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware)
		r.Get("/", s.handlePage)
		r.Get("/sign-in", s.handlePage)
		r.Get("/home", s.handlePage)
		r.Get("/meetups", s.handlePage)
		r.Get("/groups", s.handlePage)
		r.Get("/podcasts", s.handlePage)
		r.Get("/interviews", s.handlePage)
		r.Get("/info", s.handlePage)
		r.Get("/profile/*", s.handlePage)
	})

	return r
}

// handlePage is a stand-in for the page-rendering collaborator; the gate has
// already allowed the navigation by the time it runs.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok: " + r.URL.Path))
}

// Run starts the HTTP server and shuts it down gracefully when ctx ends.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.hub.Close()
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
