package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/mqtt"
	"github.com/dokzlo13/lampd/internal/scene"
)

// MQTTService wraps the optional broker bridge. Bridge is nil when disabled.
type MQTTService struct {
	cfg    *config.Config
	Bridge *mqtt.Bridge
}

// NewMQTTService creates the bridge without connecting.
func NewMQTTService(cfg *config.Config, mailbox *deferred.Mailbox, scenes *scene.Book) *MQTTService {
	s := &MQTTService{cfg: cfg}
	if cfg.MQTT.Enabled {
		s.Bridge = mqtt.NewBridge(mailbox, scenes, cfg.MQTT.TopicPrefix)
	}
	return s
}

// Start connects to the broker and runs the bridge in the background.
func (s *MQTTService) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if s.Bridge == nil {
		log.Debug().Msg("MQTT bridge disabled")
		return nil
	}

	pub, err := mqtt.Connect(mqtt.Options{
		Broker:            s.cfg.MQTT.Broker,
		ClientID:          s.cfg.MQTT.ClientID,
		Username:          s.cfg.MQTT.Username,
		Password:          s.cfg.MQTT.Password,
		AvailabilityTopic: s.cfg.MQTT.TopicPrefix + mqtt.TopicBridgeState,
	})
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Bridge.Run(ctx, pub); err != nil {
			log.Error().Err(err).Msg("MQTT bridge error")
		}
	}()
	return nil
}
