package models

import "time"

type MessageEnvelope struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type,omitempty"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`  // Business data
	Metadata  Metadata               `json:"metadata"` // Pipeline metadata (trace_id, processing_info)
}

// IncomingEvent returns the envelope's view as the platform's event contract.
func (m MessageEnvelope) IncomingEvent() IncomingEvent {
	return IncomingEvent{
		EventID:   m.ID,
		EventType: m.EventType,
		Source:    m.Source,
		Payload:   m.Payload,
	}
}

// FromIncomingEvent builds the bus transport envelope for an IncomingEvent.
func FromIncomingEvent(event IncomingEvent) MessageEnvelope {
	return MessageEnvelope{
		ID:        event.EventID,
		EventType: event.EventType,
		Source:    event.Source,
		Timestamp: time.Now(),
		Payload:   event.Payload,
	}
}

// IncomingEvent is the platform's public event contract: what a producer
// publishes and what a workflow is matched against.
type IncomingEvent struct {
	EventID   string                 `json:"eventId"`
	EventType string                 `json:"eventType"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
}

// Metadata carries bus-transport concerns that ride alongside an event's
// payload but aren't part of the event contract itself.
type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
}
