// Package api serves the HTTP control surface: manual commands, scenes,
// on-demand sunrise and the timer list.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/govee"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/scheduler"
)

// StateReader reads the current lamp state.
type StateReader interface {
	State(ctx context.Context) (govee.State, error)
}

// QueueReader exposes the dispatch queue.
type QueueReader interface {
	Pending() int
	Snapshot() []command.Command
}

// HistoryReader reads recent ledger entries.
type HistoryReader interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Deps are the components the handlers talk to. History may be nil.
type Deps struct {
	Mailbox  *deferred.Mailbox
	Schedule *scheduler.Schedule
	Scenes   *scene.Book
	Lamp     StateReader
	Queue    QueueReader
	History  HistoryReader
}

// Server is the control API server.
type Server struct {
	addr       string
	deps       Deps
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{addr: addr, deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)

		r.Post("/power", s.handlePower)
		r.Post("/brightness", s.handleBrightness)
		r.Post("/color", s.handleColor)
		r.Post("/sunrise", s.handleSunrise)
		r.Post("/clear", s.handleClear)

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", s.handleListScenes)
			r.Post("/{name}", s.handleScene)
		})

		r.Route("/timers", func(r chi.Router) {
			r.Get("/", s.handleGetTimers)
			r.Put("/", s.handlePutTimers)
			r.Get("/expanded", s.handleExpandedTimers)
		})

		r.Get("/queue", s.handleQueue)
		r.Get("/history", s.handleHistory)
	})

	return r
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
