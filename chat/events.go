package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tk103331/eino-chatlab/store"
)

// EventTypes are the interaction events the frontends report
var EventTypes = map[string]bool{
	"click":  true,
	"focus":  true,
	"hover":  true,
	"enter":  true,
	"toggle": true,
	"copy":   true,
}

// Event is a UI interaction event
type Event struct {
	ParticipantID string    `json:"participantID"`
	EventType     string    `json:"eventType"`
	ElementName   string    `json:"elementName"`
	Timestamp     time.Time `json:"timestamp"`
}

// LogEvent validates and stores an event
func (s *Service) LogEvent(ctx context.Context, e Event) error {
	typ := strings.ToLower(strings.TrimSpace(e.EventType))
	if !EventTypes[typ] {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.EventType)
	}
	if s.store == nil {
		return nil
	}

	err := s.store.SaveEvent(ctx, &store.EventLog{
		ParticipantID: e.ParticipantID,
		EventType:     typ,
		ElementName:   strings.TrimSpace(e.ElementName),
		CreatedAt:     e.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
