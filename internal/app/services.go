package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/db"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/scheduler"
	"github.com/dokzlo13/lampd/internal/store"
	"github.com/dokzlo13/lampd/internal/sunrise"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB       *db.DB
	Ledger   *ledger.Ledger
	Timers   store.TimerStore
	boltFile *store.BoltStore

	// Domain
	Scenes   *scene.Book
	Mailbox  *deferred.Mailbox
	Executor *deferred.Executor

	// High-level services
	Scheduler *SchedulerService
	Lamp      *LampService
	API       *APIService
	MQTT      *MQTTService

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// recorder stays a nil interface when the ledger is off
	var recorder scheduler.Recorder
	if cfg.Ledger.IsEnabled() {
		s.Ledger = ledger.New(database.DB)
		recorder = s.Ledger
	}

	switch cfg.Storage.Timers {
	case "bolt":
		s.boltFile, err = store.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Timers = s.boltFile
	default:
		s.Timers = store.NewSQLiteStore(database.DB)
	}

	s.Scenes = scene.NewBook(lampFromConfig(cfg.Lamp))
	if cfg.Scenes.Script != "" {
		if err := s.Scenes.LoadFile(cfg.Scenes.Script); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to load scene script: %w", err)
		}
	}

	gen := sunrise.NewGenerator(
		sunriseFromConfig(cfg.Sunrise),
		cfg.Dispatch.Interval.Duration(),
		cfg.Dispatch.AvgApplyDuration.Duration(),
	)
	s.Executor = deferred.NewExecutor(s.Scenes, gen)
	s.Mailbox = deferred.NewMailbox(cfg.Dispatch.MailboxSize)

	s.Scheduler = NewSchedulerService(cfg, s.Timers, recorder, s.Ledger)
	s.Lamp = NewLampService(cfg, s.Mailbox, s.Executor, s.Scheduler.Checker, recorder)
	s.API = NewAPIService(cfg, s)
	s.MQTT = NewMQTTService(cfg, s.Mailbox, s.Scenes)
	if s.MQTT.Bridge != nil {
		s.Lamp.Dispatcher.AddObserver(s.MQTT.Bridge)
	}

	return s, nil
}

func lampFromConfig(c config.LampConfig) scene.Lamp {
	return scene.Lamp{
		DayBrightness:   uint8(c.DayBrightness),
		NightBrightness: uint8(c.NightBrightness),
		NightlampColor: command.RGB{
			R: uint8(c.NightlampColor[0]),
			G: uint8(c.NightlampColor[1]),
			B: uint8(c.NightlampColor[2]),
		},
	}
}

func sunriseFromConfig(c config.SunriseConfig) sunrise.Params {
	return sunrise.Params{
		Hue:             c.Hue,
		SaturationStart: c.SaturationStart,
		SaturationStop:  c.SaturationStop,
		Value:           c.Value,
		BrightnessStart: uint8(c.BrightnessStart),
		BrightnessStop:  uint8(c.BrightnessStop),
	}
}

// Start starts all services in order: timer restore, scheduler, dispatch
// loop, HTTP, MQTT, ledger cleanup.
// The onFatalError callback is called when a service cannot keep running.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	s.Scheduler.Restore()
	s.Lamp.Start(ctx, &s.wg)
	s.API.Start(ctx, &s.wg, onFatalError)
	if err := s.MQTT.Start(ctx, &s.wg); err != nil {
		return err
	}
	s.Scheduler.StartCleanup(ctx, &s.wg)
	return nil
}

// ClearTimers drops the persisted timer list.
func (s *Services) ClearTimers() error {
	return s.Timers.Clear()
}

// Stop waits for background services to return and releases resources.
func (s *Services) Stop() error {
	s.wg.Wait()
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Lamp != nil {
		s.Lamp.Close()
	}
	if s.boltFile != nil {
		if err := s.boltFile.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close bolt store")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
