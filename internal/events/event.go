package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened.
type Kind string

// Event kinds.
const (
	KindDoorRegistered       Kind = "door_registered"
	KindCardReaderRegistered Kind = "card_reader_registered"
	KindFireAlarmRegistered  Kind = "fire_alarm_registered"
	KindFireDoorConfirmed    Kind = "fire_door_confirmed"
	KindAccessDecided        Kind = "access_decided"
	KindDoorCycled           Kind = "door_cycled"
)

// Event is a single published fact.
type Event struct {
	ID   string         `json:"id"`
	Kind Kind           `json:"kind"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// New stamps a fresh event with a random id and the current time.
func New(kind Kind, data map[string]any) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Time: time.Now().UTC(),
		Data: data,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Channel returns the pub/sub channel for a building name.
func Channel(name string) string {
	return fmt.Sprintf("building:%s:events", name)
}
