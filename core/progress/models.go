package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classhub/lms/core"
)

// Statuses
const (
	StatusComplete   = "complete"
	StatusInProgress = "in_progress"
	StatusNotStarted = "not_started"
)

// DefaultCompletionThreshold is the rate from which a lecture counts as watched.
const DefaultCompletionThreshold = 95

// StatusOf returns the status of a progress rate for the given completion threshold.
func StatusOf(rate, threshold int) string {
	switch {
	case rate >= threshold:
		return StatusComplete
	case rate > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// LectureView is the progress of a student on a lecture.
type LectureView struct {
	ID           string    `json:"id" db:"id"`
	ClassID      string    `json:"class_id" db:"class_id"`
	LectureID    string    `json:"lecture_id" db:"lecture_id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	ProgressRate int       `json:"progress_rate" db:"progress_rate"` // 0-100, never decreases
	LastPosition float64   `json:"last_position" db:"last_position"` // seconds
	ViewedAt     time.Time `json:"viewed_at" db:"viewed_at"`         // UTC
}

// ViewUpdate is a progress report to merge into the stored LectureView.
type ViewUpdate struct {
	ClassID      string
	LectureID    string
	StudentID    string
	Rate         int
	LastPosition *float64 // nil keeps the stored position
	ViewedAt     time.Time
}

// Merge applies upd to v: the rate only grows, the position is replaced when given.
func (v LectureView) Merge(upd ViewUpdate) LectureView {
	if upd.Rate > v.ProgressRate {
		v.ProgressRate = upd.Rate
	}
	if upd.LastPosition != nil {
		v.LastPosition = *upd.LastPosition
	}
	v.ViewedAt = upd.ViewedAt
	return v
}

// UpdatePosition is the body of a position report. Progress rates are only credited by
// playback sessions.
type UpdatePosition struct {
	ClassID      string   `json:"class_id" validate:"required"`
	LectureID    string   `json:"lecture_id" validate:"required"`
	LastPosition *float64 `json:"last_position" validate:"required,min=0"`
}

func (up *UpdatePosition) Validate(validate *validator.Validate) error {
	up.ClassID = core.CleanString(up.ClassID)
	up.LectureID = core.CleanString(up.LectureID)
	return validate.Struct(up)
}

// StartPlayback is the body of a playback session start.
type StartPlayback struct {
	ClassID  string  `json:"class_id" validate:"required"`
	Duration float64 `json:"duration" validate:"required,gt=0"` // seconds
}

func (sp *StartPlayback) Validate(validate *validator.Validate) error {
	sp.ClassID = core.CleanString(sp.ClassID)
	return validate.Struct(sp)
}

// Player states
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
	StateEnded   = "ended"
)

// Heartbeat is the body of a playback heartbeat.
type Heartbeat struct {
	CurrentTime *float64 `json:"current_time" validate:"required,min=0"`
	State       string   `json:"state" validate:"required,oneof=playing paused ended"`
}

func (hb *Heartbeat) Validate(validate *validator.Validate) error {
	hb.State = core.CleanString(hb.State, true /* lower */)
	return validate.Struct(hb)
}

// StopPlayback is the body of a playback session stop.
type StopPlayback struct {
	CurrentTime *float64 `json:"current_time" validate:"omitempty,min=0"`
}

func (sp *StopPlayback) Validate(validate *validator.Validate) error {
	return validate.Struct(sp)
}
