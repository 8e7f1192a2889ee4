// Package mqtt publishes sequencer events over MQTT with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/gpio-sequencer/internal/engine"
)

// ClientIDPrefix starts every generated client ID.
const ClientIDPrefix = "gpio-sequencer"

// ClientID returns configured, or a generated ID when it is empty. Brokers
// drop the older session when two clients share an ID.
func ClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return ClientIDPrefix + "-" + uuid.NewString()[:8]
}

// Topics are derived from a prefix: <prefix>/events and <prefix>/system.
type Topics struct {
	Events string
	System string
}

// NewTopics builds the topic set for prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an engine event to the broker.
	// Returns error if publishing fails (should not stop the engine).
	Publish(event engine.Event) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event (STARTUP, SHUTDOWN, FAULT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGINT", or the fault message
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message payload for engine events.
type Payload struct {
	Sequencer EventPayload `json:"sequencer"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp string   `json:"timestamp"`
	Program   string   `json:"program"`
	Event     string   `json:"event"`
	Count     uint64   `json:"count"`
	Value     *float64 `json:"value,omitempty"`
}

// FormatPayload creates the JSON payload for an engine event.
func FormatPayload(program string, event engine.Event) ([]byte, error) {
	p := EventPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Program:   program,
		Event:     string(event.Type),
		Count:     event.Count,
	}
	if event.Type != engine.EventDetected {
		v := event.Value
		p.Value = &v
	}
	return json.Marshal(Payload{Sequencer: p})
}

// SystemPayload is the payload for simple lifecycle events that don't carry
// a status snapshot (e.g. the last will).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(engine.Event) error      { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
