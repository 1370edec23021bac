package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/api"
	"github.com/dokzlo13/lampd/internal/config"
)

// APIService wraps the control HTTP server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, s *Services) *APIService {
	deps := api.Deps{
		Mailbox:  s.Mailbox,
		Schedule: s.Scheduler.Schedule,
		Scenes:   s.Scenes,
		Lamp:     s.Lamp.Client,
		Queue:    s.Lamp.Dispatcher,
	}
	if s.Ledger != nil {
		deps.History = s.Ledger
	}
	return &APIService{
		cfg:    cfg,
		server: api.NewServer(cfg.HTTP.Addr(), deps),
	}
}

// Start begins the API server if enabled. A listen failure is fatal.
func (s *APIService) Start(ctx context.Context, wg *sync.WaitGroup, onFatalError func(error)) {
	if !s.cfg.HTTP.IsEnabled() {
		log.Info().Msg("HTTP API disabled")
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("API server error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
}
