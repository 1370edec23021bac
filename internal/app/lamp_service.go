package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/dispatch"
	"github.com/dokzlo13/lampd/internal/govee"
	"github.com/dokzlo13/lampd/internal/scheduler"
)

// LampService wraps the Govee client and the dispatch loop driving it.
type LampService struct {
	cfg *config.Config

	Client     *govee.Client
	Dispatcher *dispatch.Dispatcher
}

// NewLampService creates the client and dispatcher. Nothing talks to the lamp
// until Start.
func NewLampService(
	cfg *config.Config,
	mailbox *deferred.Mailbox,
	executor *deferred.Executor,
	checker *scheduler.Checker,
	rec scheduler.Recorder,
) *LampService {
	client := govee.NewClient(govee.Options{
		BaseURL:    cfg.Govee.BaseURL,
		APIKey:     cfg.Govee.APIKey,
		Device:     cfg.Govee.Device,
		Model:      cfg.Govee.Model,
		Timeout:    cfg.Govee.Timeout.Duration(),
		Debug:      cfg.Govee.Debug,
		AvgApply:   cfg.Dispatch.AvgApplyDuration.Duration(),
		ControlRPM: cfg.Govee.ControlRPM,
		StateRPS:   cfg.Govee.StateRPS,
	})

	d := dispatch.New(dispatch.Options{
		Applier:  client,
		Mailbox:  mailbox,
		Executor: executor,
		Checker:  checker,
		Recorder: rec,
		Interval: cfg.Dispatch.Interval.Duration(),
	})

	return &LampService{
		cfg:        cfg,
		Client:     client,
		Dispatcher: d,
	}
}

// Start runs the dispatch loop in the background.
func (s *LampService) Start(ctx context.Context, wg *sync.WaitGroup) {
	if s.cfg.Govee.Debug {
		log.Warn().Msg("Govee debug mode: commands are not sent to the lamp")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Dispatcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Dispatch loop error")
		}
	}()
}

// Close releases the HTTP client.
func (s *LampService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
