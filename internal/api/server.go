package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/osanchezp/loyaltynotify/internal/auth"
	"github.com/osanchezp/loyaltynotify/internal/config"
	"github.com/osanchezp/loyaltynotify/internal/dispatch"
	"github.com/osanchezp/loyaltynotify/internal/models"
)

// Dispatcher is the dispatch engine as the API sees it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*models.DispatchJob, error)
	RunCampaign(ctx context.Context, c *models.Campaign, kind models.CampaignJobKind) (map[models.Channel]models.Summary, error)
}

// QueuePoller runs one queue pass on demand (the cron-invoked trigger).
type QueuePoller interface {
	RunOnce(ctx context.Context) (int, error)
}

// Reader is the read-only slice of the store the handlers need.
type Reader interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	GetDispatchJob(ctx context.Context, id string) (*models.DispatchJob, error)
}

type Server struct {
	cfg        config.ServerConfig
	authCfg    config.AuthConfig
	dispatcher Dispatcher
	poller     QueuePoller
	reader     Reader
	router     *chi.Mux
	log        zerolog.Logger
	http       *http.Server
}

func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, dispatcher Dispatcher, poller QueuePoller, reader Reader, log zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		authCfg:    authCfg,
		dispatcher: dispatcher,
		poller:     poller,
		reader:     reader,
		log:        log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	dispatchHandler := NewDispatchHandler(s.dispatcher, s.reader)
	queueHandler := NewQueueHandler(s.poller)
	campaignHandler := NewCampaignHandler(s.dispatcher, s.reader)

	verifier := auth.NewRoleVerifier(s.authCfg.JWTSecret, s.authCfg.AllowedRoles)

	// Health check — no auth
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Manual/direct dispatch surface
		r.Group(func(r chi.Router) {
			r.Use(SecretHeaderMiddleware(apiSecretHeader, s.authCfg.APISecret))
			r.Use(OptionalRoleMiddleware(verifier))
			r.Post("/dispatch", dispatchHandler.Dispatch)
			r.Get("/jobs/{id}", dispatchHandler.GetJob)
		})

		// Cron-invoked queue poll
		r.Group(func(r chi.Router) {
			r.Use(SecretHeaderMiddleware(schedulerSecretHeader, s.authCfg.SchedulerSecret))
			r.Post("/queue/poll", queueHandler.Poll)
		})

		// Campaign trigger
		r.Group(func(r chi.Router) {
			r.Use(BearerSecretMiddleware(s.authCfg.CampaignSecret))
			r.Post("/campaigns/trigger", campaignHandler.Trigger)
		})
	})

	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
