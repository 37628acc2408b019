package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	progressUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lms",
		Subsystem: "progress",
		Name:      "updates_total",
		Help:      "Number of persisted lecture progress updates.",
	})

	lecturesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lms",
		Subsystem: "progress",
		Name:      "lectures_completed_total",
		Help:      "Number of lectures that reached the completion threshold.",
	})

	skipBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lms",
		Subsystem: "playback",
		Name:      "skip_blocks_total",
		Help:      "Number of times a player was sent back to the high-water mark.",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lms",
		Subsystem: "playback",
		Name:      "active_sessions",
		Help:      "Number of live playback sessions.",
	})
)
