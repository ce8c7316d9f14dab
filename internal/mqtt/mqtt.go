// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultTopicPrefix is the topic root for status and system messages.
const DefaultTopicPrefix = "device/warranty"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventActivated   = "ACTIVATED"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// StatusTopic returns the topic for progress messages under prefix.
func StatusTopic(prefix string) string {
	return topicRoot(prefix) + "/status"
}

// SystemTopic returns the topic for lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return topicRoot(prefix) + "/system"
}

func topicRoot(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return DefaultTopicPrefix
	}
	return prefix
}

// Publisher publishes status and lifecycle messages.
type Publisher interface {
	// PublishStatus sends a progress message. It may block for up to the
	// client write timeout; StatusReporter keeps it off the caller's path.
	PublishStatus(event StatusEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StatusEvent is a progress message with the time it was reported.
type StatusEvent struct {
	Timestamp time.Time
	Message   string
}

// SystemEvent represents a system lifecycle event (startup, shutdown, activated).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// StatusPayload is the JSON body published to the status topic.
type StatusPayload struct {
	Warranty StatusPayloadInner `json:"warranty"`
}

// StatusPayloadInner contains the status message details.
type StatusPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// FormatStatusPayload creates the JSON payload for a status message.
func FormatStatusPayload(event StatusEvent) ([]byte, error) {
	return json.Marshal(StatusPayload{
		Warranty: StatusPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Status:    event.Message,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
