package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/app"
	"github.com/dokzlo13/lampd/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	resetTimers := flag.Bool("reset-timers", false, "Clear persisted timers on startup")
	checkOnly := flag.Bool("check", false, "Validate the configuration and scene script, then exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.UseColors())

	mode := "live"
	if cfg.Govee.Debug {
		mode = "debug"
	}
	log.Info().
		Str("config", configPath).
		Str("device", cfg.Govee.Device).
		Str("model", cfg.Govee.Model).
		Str("mode", mode).
		Str("timers", cfg.Storage.Timers).
		Str("timezone", cfg.Schedule.Timezone).
		Dur("interval", cfg.Dispatch.Interval.Duration()).
		Msg("Starting lampd")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *checkOnly {
		log.Info().Strs("scenes", application.Scenes()).Msg("Configuration OK")
		application.Close()
		return
	}

	if *resetTimers {
		log.Info().Msg("Clearing persisted timers (--reset-timers)")
		if err := application.ClearTimers(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear timers")
		}
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	application.Wait()

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
