package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/scene"
)

// stateBuffer bounds applied commands waiting to be published.
const stateBuffer = 64

// Bridge enqueues requests from the broker and publishes applied commands.
type Bridge struct {
	pub     Publisher
	mailbox *deferred.Mailbox
	scenes  *scene.Book
	prefix  string
	now     func() time.Time

	applied chan command.Command
}

// NewBridge creates a bridge publishing under prefix. It can observe the
// dispatch loop before a broker connection exists; updates buffer until Run.
func NewBridge(mailbox *deferred.Mailbox, scenes *scene.Book, prefix string) *Bridge {
	return &Bridge{
		mailbox: mailbox,
		scenes:  scenes,
		prefix:  prefix,
		now:     time.Now,
		applied: make(chan command.Command, stateBuffer),
	}
}

// CommandApplied queues cmd for publishing. Called from the dispatch loop, so
// it never blocks; commands are dropped if the broker falls behind.
func (b *Bridge) CommandApplied(cmd command.Command) {
	select {
	case b.applied <- cmd:
	default:
		log.Warn().Str("command", cmd.String()).Msg("MQTT state buffer full, dropping update")
	}
}

// Run subscribes to requests on pub and publishes state until ctx is
// cancelled, then announces the bridge offline and disconnects.
func (b *Bridge) Run(ctx context.Context, pub Publisher) error {
	b.pub = pub

	if err := b.pub.Subscribe(b.prefix+TopicSet, b.handleRequest); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	b.publishAvailability(Online)
	log.Info().Str("topic", b.prefix+TopicSet).Msg("MQTT bridge listening")

	for {
		select {
		case <-ctx.Done():
			b.publishAvailability(Offline)
			return b.pub.Close()
		case cmd := <-b.applied:
			b.publishState(cmd)
		}
	}
}

func (b *Bridge) handleRequest(payload []byte) {
	a, err := deferred.ParseRequest(payload)
	if err != nil {
		log.Warn().Err(err).Str("payload", string(payload)).Msg("Rejected MQTT request")
		return
	}
	if a.Kind == deferred.KindScene && !b.scenes.Has(a.Scene) {
		log.Warn().Str("scene", a.Scene).Msg("Rejected MQTT request for unknown scene")
		return
	}

	// runs on paho's delivery goroutine, so a full mailbox drops the request
	// instead of stalling every later message
	if !b.mailbox.TryEnqueue(a) {
		log.Warn().Str("action", a.String()).Int("mailbox", b.mailbox.Len()).Msg("Mailbox full, dropping MQTT request")
		return
	}
	log.Info().Str("action", a.String()).Msg("MQTT request queued")
}

func (b *Bridge) publishState(cmd command.Command) {
	payload, err := FormatState(cmd, b.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to format state payload")
		return
	}
	if err := b.pub.Publish(b.prefix+TopicState, true, payload); err != nil {
		log.Warn().Err(err).Str("command", cmd.String()).Msg("Failed to publish state")
	}
}

func (b *Bridge) publishAvailability(status string) {
	if err := b.pub.Publish(b.prefix+TopicBridgeState, true, []byte(status)); err != nil {
		log.Warn().Err(err).Str("status", status).Msg("Failed to publish bridge state")
	}
}
