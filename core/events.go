package core

import "time"

// Event subjects
const (
	EventUserRegistered    = "lms.user.registered"
	EventEnrollmentCreated = "lms.enrollment.created"
	EventLectureCompleted  = "lms.lecture.completed"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID         string                 `json:"event_id"`
	Subject    string                 `json:"subject"`
	UserID     string                 `json:"user_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// EventPublisher publishes domain events, fire-and-forget: failures are logged, never returned.
type EventPublisher interface {
	Publish(subject, userID string, props map[string]interface{})
}
