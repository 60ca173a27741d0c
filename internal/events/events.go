package events

import (
	"context"
	"time"
)

// TopicWorkspace carries every workspace audit event.
const TopicWorkspace = "workspace"

// Event is the published form of one audit log entry.
type Event struct {
	ID          string         `json:"id"`
	Seq         int64          `json:"seq"`
	Type        string         `json:"type"`
	HouseholdID string         `json:"householdId"`
	WorkspaceID string         `json:"workspaceId"`
	ActorID     string         `json:"actorId"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// Publisher delivers events on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
func (Nop) Close() error                                 { return nil }
