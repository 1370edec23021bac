// Package mqtt bridges the lamp to an MQTT broker: requests arrive on
// <prefix>/set, applied commands leave on <prefix>/state.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
)

// Topic suffixes under the configured prefix.
const (
	TopicSet         = "/set"
	TopicState       = "/state"
	TopicBridgeState = "/bridge/state"
)

// Bridge availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Publisher is the broker connection the bridge uses.
type Publisher interface {
	// Publish sends payload to topic at QoS 1.
	Publish(topic string, retained bool, payload []byte) error

	// Subscribe routes every message on topic to handler.
	Subscribe(topic string, handler func(payload []byte)) error

	// Close disconnects from the broker.
	Close() error
}

// StatePayload is published for every command that reached the lamp.
type StatePayload struct {
	Command   command.Command `json:"command"`
	AppliedAt string          `json:"applied_at"`
}

// FormatState creates the JSON payload for an applied command.
func FormatState(cmd command.Command, at time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Command:   cmd,
		AppliedAt: at.UTC().Format(time.RFC3339),
	})
}
