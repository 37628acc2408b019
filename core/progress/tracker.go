package progress

import (
	"math"
	"time"
)

// Tracker actions
const (
	ActionContinue = "continue"
	ActionSeek     = "seek"
)

// TrackerOptions tune the anti-skip enforcement.
type TrackerOptions struct {
	Tolerance           time.Duration // how far ahead of the high-water mark a position may be
	Slack               time.Duration // extra time credited past the high-water mark
	MaxSpeed            float64       // playback speed bounding the high-water mark in ObserveAt, <= 0 for none
	CompletionThreshold int
	PersistInterval     time.Duration
}

func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{
		Tolerance:           3 * time.Second,
		Slack:               1 * time.Second,
		MaxSpeed:            2,
		CompletionThreshold: DefaultCompletionThreshold,
		PersistInterval:     5 * time.Second,
	}
}

// Decision tells the player what to do after an observation.
type Decision struct {
	Action string  `json:"action"`
	SeekTo float64 `json:"seek_to"` // seconds, set when Action is ActionSeek
}

// Tracker follows one viewing of a lecture video and refuses skipping ahead of
// what was actually watched (the high-water mark) until the lecture is complete.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	opts     TrackerOptions
	duration float64 // seconds

	seedRate       int
	rate           int
	hwm            float64
	lastPosition   float64
	complete       bool
	lastCheckpoint time.Time
	lastObserved   time.Time
}

// NewTracker seeds a tracker from the stored progress of the student.
// duration must be positive.
func NewTracker(opts TrackerOptions, duration float64, storedRate int, storedPosition float64, now time.Time) *Tracker {
	storedRate = clampRate(storedRate)
	t := &Tracker{
		opts:           opts,
		duration:       duration,
		seedRate:       storedRate,
		rate:           storedRate,
		complete:       storedRate >= opts.CompletionThreshold,
		lastCheckpoint: now,
		lastObserved:   now,
	}
	t.hwm = float64(storedRate) * duration / 100

	// the stored rate is floored, positions up to the next percent were credited too
	pos := t.clamp(storedPosition)
	if pos > t.hwm {
		t.hwm = math.Min(pos, float64(storedRate+1)*duration/100)
	}
	t.lastPosition = math.Min(pos, t.hwm)
	return t
}

func (t *Tracker) clamp(pos float64) float64 {
	if math.IsNaN(pos) || pos < 0 {
		return 0
	}
	if pos > t.duration {
		return t.duration
	}
	return pos
}

// Observe records the current player position and says whether the player must seek back.
func (t *Tracker) Observe(current float64) Decision {
	return t.observe(current, math.Inf(1))
}

// ObserveAt is Observe for a position reported at now: the high-water mark advances by
// at most MaxSpeed times the wall-clock time elapsed since the previous observation.
func (t *Tracker) ObserveAt(current float64, now time.Time) Decision {
	maxAdvance := math.Inf(1)
	if t.opts.MaxSpeed > 0 {
		elapsed := now.Sub(t.lastObserved).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}
		maxAdvance = elapsed * t.opts.MaxSpeed
	}
	if now.After(t.lastObserved) {
		t.lastObserved = now
	}
	return t.observe(current, maxAdvance)
}

func (t *Tracker) observe(current, maxAdvance float64) Decision {
	current = t.clamp(current)

	if t.complete {
		if current > t.hwm {
			t.hwm = current
		}
		t.lastPosition = current
		return Decision{Action: ActionContinue}
	}

	if current > t.hwm+t.opts.Tolerance.Seconds() {
		t.lastPosition = t.hwm
		return Decision{Action: ActionSeek, SeekTo: t.hwm}
	}
	if current > t.hwm {
		t.hwm = math.Min(current, t.hwm+maxAdvance)
	}
	t.lastPosition = current
	return Decision{Action: ActionContinue}
}

// Checkpoint computes the rate to persist for the current position and returns it with the
// position to resume from. The rate never goes below the seeded one nor a previous checkpoint.
func (t *Tracker) Checkpoint(current float64, now time.Time) (rate int, lastPosition float64) {
	credited := t.clamp(math.Min(t.clamp(current), t.hwm+t.opts.Slack.Seconds()))

	rate = clampRate(int(math.Floor(credited * 100 / t.duration)))
	if rate < t.seedRate {
		rate = t.seedRate
	}
	if rate < t.rate {
		rate = t.rate
	}
	t.rate = rate
	if rate >= t.opts.CompletionThreshold {
		t.complete = true
	}
	t.lastPosition = credited
	t.lastCheckpoint = now
	return rate, credited
}

// Due tells whether a checkpoint should be persisted.
func (t *Tracker) Due(now time.Time) bool {
	return now.Sub(t.lastCheckpoint) >= t.opts.PersistInterval
}

func (t *Tracker) Complete() bool         { return t.complete }
func (t *Tracker) Rate() int              { return t.rate }
func (t *Tracker) HighWaterMark() float64 { return t.hwm }
func (t *Tracker) LastPosition() float64  { return t.lastPosition }
func (t *Tracker) Duration() float64      { return t.duration }

func clampRate(rate int) int {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
