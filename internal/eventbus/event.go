// Package eventbus implements the event bus daemon (C6): a control
// socket plus one push-only fan-out socket per source.
package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// DefaultVersion is stamped onto every event whose caller didn't specify
// one.
const DefaultVersion = "1.0.0"

// Event is the wire shape published on a source's fan-out socket.
type Event struct {
	EventID   string `json:"event_id"`
	Version   string `json:"version"`
	Source    string `json:"source"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// NewEvent stamps a fresh event_id and RFC3339 UTC timestamp.
func NewEvent(source, eventType string, payload any) Event {
	return Event{
		EventID:   uuid.NewString(),
		Version:   DefaultVersion,
		Source:    source,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// CoreSource is the reserved source id for the supervisor itself, exempt
// from rate limiting.
const CoreSource = "core"
