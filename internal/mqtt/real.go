package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options configures a broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// AvailabilityTopic receives a retained "offline" will and a retained
	// "online" on every reconnect.
	AvailabilityTopic string
}

// RealPublisher talks to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client

	mu            sync.Mutex
	subscriptions map[string]func([]byte)
	connected     bool
}

// Connect dials the broker and waits for the first connection.
func Connect(opts Options) (*RealPublisher, error) {
	p := &RealPublisher{subscriptions: make(map[string]func([]byte))}

	// Suffix keeps two instances from kicking each other off the broker.
	clientID := opts.ClientID + "-" + uuid.NewString()[:8]

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c paho.Client) {
			p.onConnect(c, opts.AvailabilityTopic)
		})
	if opts.AvailabilityTopic != "" {
		co.SetWill(opts.AvailabilityTopic, Offline, 1, true)
	}

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	log.Info().Str("broker", opts.Broker).Str("client_id", clientID).Msg("MQTT connected")
	return p, nil
}

// onConnect restores subscriptions after a reconnect.
func (p *RealPublisher) onConnect(c paho.Client, availability string) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	subs := make(map[string]func([]byte), len(p.subscriptions))
	for topic, h := range p.subscriptions {
		subs[topic] = h
	}
	p.mu.Unlock()

	if !reconnect {
		return
	}

	log.Info().Int("subscriptions", len(subs)).Msg("MQTT reconnected")
	for topic, h := range subs {
		c.Subscribe(topic, 1, wrap(h))
	}
	if availability != "" {
		c.Publish(availability, 1, true, Online)
	}
}

func wrap(h func([]byte)) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Payload())
	}
}

// Publish sends payload to topic.
func (p *RealPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe routes messages on topic to handler. The subscription survives
// reconnects.
func (p *RealPublisher) Subscribe(topic string, handler func(payload []byte)) error {
	p.mu.Lock()
	p.subscriptions[topic] = handler
	p.mu.Unlock()

	token := p.client.Subscribe(topic, 1, wrap(handler))
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
