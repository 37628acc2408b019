package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Seed(t *testing.T) {
	now := time.Now()
	opts := DefaultTrackerOptions()

	tr := NewTracker(opts, 100, 20, 15, now)
	assert.Equal(t, 20.0, tr.HighWaterMark())
	assert.Equal(t, 15.0, tr.LastPosition())
	assert.Equal(t, 20, tr.Rate())
	assert.False(t, tr.Complete())

	tr = NewTracker(opts, 100, 150, 500, now)
	assert.Equal(t, 100, tr.Rate())
	assert.Equal(t, 100.0, tr.LastPosition())
	assert.True(t, tr.Complete())

	tr = NewTracker(opts, 100, -5, -1, now)
	assert.Equal(t, 0, tr.Rate())
	assert.Equal(t, 0.0, tr.LastPosition())

	// positions the floored rate dropped are credited up to the next percent
	tests := []struct {
		name     string
		duration float64
		rate     int
		pos      float64
		wantHWM  float64
	}{
		{"within the percent", 3600, 2, 100, 100},
		{"past the next percent", 3600, 2, 3000, 108},
		{"behind the rate", 3600, 2, 50, 72},
		{"nothing stored", 3600, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(opts, tt.duration, tt.rate, tt.pos, now)
			assert.Equal(t, tt.wantHWM, tr.HighWaterMark())
			assert.Equal(t, math.Min(tt.pos, tt.wantHWM), tr.LastPosition())
			assert.Equal(t, ActionContinue, tr.ObserveAt(tr.LastPosition()+0.5, now.Add(time.Second)).Action)
		})
	}
}

func TestTracker_ObserveAt(t *testing.T) {
	start := time.Now()
	tr := NewTracker(DefaultTrackerOptions(), 100, 0, 0, start)

	tests := []struct {
		name    string
		elapsed time.Duration // since start
		current float64
		want    Decision
		wantHWM float64
	}{
		{"no time passed", 0, 2.9, Decision{Action: ActionContinue}, 0},
		{"faster than the clock", 0, 5.8, Decision{Action: ActionSeek, SeekTo: 0}, 0},
		{"normal speed", time.Second, 1, Decision{Action: ActionContinue}, 1},
		{"twice the speed", 2 * time.Second, 3, Decision{Action: ActionContinue}, 3},
		{"capped advance", 3 * time.Second, 5.5, Decision{Action: ActionContinue}, 5},
		{"clock going back", time.Second, 7, Decision{Action: ActionContinue}, 5},
		{"beyond tolerance", 10 * time.Second, 9, Decision{Action: ActionSeek, SeekTo: 5}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.ObserveAt(tt.current, start.Add(tt.elapsed)))
			assert.Equal(t, tt.wantHWM, tr.HighWaterMark())
		})
	}

	opts := DefaultTrackerOptions()
	opts.MaxSpeed = 0
	tr = NewTracker(opts, 100, 0, 0, start)
	tr.ObserveAt(2.9, start)
	assert.Equal(t, 2.9, tr.HighWaterMark())
}

func TestTracker_Observe(t *testing.T) {
	tr := NewTracker(DefaultTrackerOptions(), 100, 20, 15, time.Now())

	tests := []struct {
		name     string
		current  float64
		want     Decision
		wantHWM  float64
		wantLast float64
	}{
		{"behind hwm", 10, Decision{Action: ActionContinue}, 20, 10},
		{"within tolerance", 23, Decision{Action: ActionContinue}, 23, 23},
		{"skip ahead", 40, Decision{Action: ActionSeek, SeekTo: 23}, 23, 23},
		{"continuous play", 25, Decision{Action: ActionContinue}, 25, 25},
		{"past the end", 1000, Decision{Action: ActionSeek, SeekTo: 25}, 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Observe(tt.current))
			assert.Equal(t, tt.wantHWM, tr.HighWaterMark())
			assert.Equal(t, tt.wantLast, tr.LastPosition())
		})
	}
}

func TestTracker_ObserveComplete(t *testing.T) {
	tr := NewTracker(DefaultTrackerOptions(), 100, 96, 0, time.Now())

	assert.Equal(t, Decision{Action: ActionContinue}, tr.Observe(99))
	assert.Equal(t, 99.0, tr.HighWaterMark())
	assert.Equal(t, Decision{Action: ActionContinue}, tr.Observe(5))
	assert.Equal(t, 99.0, tr.HighWaterMark())
	assert.Equal(t, 5.0, tr.LastPosition())
}

func TestTracker_Checkpoint(t *testing.T) {
	now := time.Now()
	tr := NewTracker(DefaultTrackerOptions(), 100, 20, 0, now)
	tr.Observe(22)

	// scrubbed-ahead time is credited up to hwm + slack only
	rate, pos := tr.Checkpoint(30, now)
	assert.Equal(t, 23, rate)
	assert.Equal(t, 23.0, pos)

	// never goes down
	rate, pos = tr.Checkpoint(5, now)
	assert.Equal(t, 23, rate)
	assert.Equal(t, 5.0, pos)

	// seeded rate is a floor
	tr = NewTracker(DefaultTrackerOptions(), 100, 50, 0, now)
	rate, _ = tr.Checkpoint(10, now)
	assert.Equal(t, 50, rate)
}

func TestTracker_Completion(t *testing.T) {
	now := time.Now()
	tr := NewTracker(DefaultTrackerOptions(), 10, 0, 0, now)
	for sec := 0.0; sec <= 10; sec++ {
		assert.Equal(t, ActionContinue, tr.Observe(sec).Action)
	}
	rate, pos := tr.Checkpoint(10, now)
	assert.Equal(t, 100, rate)
	assert.Equal(t, 10.0, pos)
	assert.True(t, tr.Complete())

	// no more enforcement
	assert.Equal(t, ActionContinue, tr.Observe(0).Action)
}

func TestTracker_Due(t *testing.T) {
	now := time.Now()
	tr := NewTracker(DefaultTrackerOptions(), 100, 0, 0, now)

	assert.False(t, tr.Due(now.Add(4*time.Second)))
	assert.True(t, tr.Due(now.Add(5*time.Second)))

	tr.Checkpoint(0, now.Add(5*time.Second))
	assert.False(t, tr.Due(now.Add(6*time.Second)))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusNotStarted, StatusOf(0, 95))
	assert.Equal(t, StatusInProgress, StatusOf(1, 95))
	assert.Equal(t, StatusInProgress, StatusOf(94, 95))
	assert.Equal(t, StatusComplete, StatusOf(95, 95))
	assert.Equal(t, StatusComplete, StatusOf(90, 90))
}
