package eventsvc

import (
	"sync"

	"github.com/classhub/lms/core"
)

// Recorder keeps published events in memory. Used in debug mode and tests.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
	logger core.Logger
}

var _ core.EventPublisher = (*Recorder)(nil)

func NewRecorder(logger core.Logger) *Recorder {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) Publish(subject, userID string, props map[string]interface{}) {
	ev := newEvent(subject, userID, props)
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.logger.Debug("event published", map[string]interface{}{"subject": subject, "user_id": userID})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Subjects returns the subjects of the recorded events, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	subjects := make([]string, len(r.events))
	for i, ev := range r.events {
		subjects[i] = ev.Subject
	}
	return subjects
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
