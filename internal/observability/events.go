package observability

import "time"

// EventEnvelope wraps anything mirrored to the message bus.
type EventEnvelope struct {
	EventType  string    `json:"event_type"`
	EventName  string    `json:"event_name"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewEnvelope(eventType, eventName string, payload any) EventEnvelope {
	return EventEnvelope{EventType: eventType, EventName: eventName, OccurredAt: time.Now().UTC(), Payload: payload}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
