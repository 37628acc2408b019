package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

var ErrSessionNotFound = core.NewNotFoundError("playback session")

const (
	defaultSessionTTL = 30 * time.Minute
	minSweepInterval  = time.Second
)

type (
	// StartResult is what a player needs to resume a lecture.
	StartResult struct {
		SessionID     string  `json:"session_id"`
		ResumeAt      float64 `json:"resume_at"`
		HighWaterMark float64 `json:"high_water_mark"`
		Rate          int     `json:"rate"`
		Completed     bool    `json:"completed"`
	}

	HeartbeatResult struct {
		Action    string  `json:"action"`
		SeekTo    float64 `json:"seek_to"`
		Rate      int     `json:"rate"`
		Completed bool    `json:"completed"`
		Persisted bool    `json:"persisted"`
	}

	session struct {
		mu        sync.Mutex
		id        string
		classID   string
		lectureID string
		studentID string
		tracker   *Tracker
		lastSeen  time.Time
	}

	// SessionManager enforces anti-skip on the server side: each playback session owns a
	// Tracker fed by player heartbeats, and its checkpoints go through Service.UpdateProgress.
	SessionManager struct {
		svc    *Service
		opts   TrackerOptions
		ttl    time.Duration
		logger core.Logger

		mu       sync.Mutex
		sessions map[string]*session

		stop      chan struct{}
		done      chan struct{}
		closeOnce sync.Once
	}
)

// NewSessionManager starts a SessionManager and its expiry sweeper. Call Close to stop it.
func NewSessionManager(conf *core.Config, svc *Service, logger core.Logger) *SessionManager {
	opts := DefaultTrackerOptions()
	if conf.Progress.Tolerance > 0 {
		opts.Tolerance = conf.Progress.Tolerance
	}
	if conf.Progress.Slack > 0 {
		opts.Slack = conf.Progress.Slack
	}
	if conf.Progress.MaxSpeed != 0 {
		opts.MaxSpeed = conf.Progress.MaxSpeed
	}
	if conf.Progress.PersistInterval > 0 {
		opts.PersistInterval = conf.Progress.PersistInterval
	}
	opts.CompletionThreshold = svc.Threshold()

	ttl := conf.Progress.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	m := &SessionManager{
		svc:      svc,
		opts:     opts,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Start opens a playback session of an enrolled student on a lecture lasting duration seconds.
func (m *SessionManager) Start(ctx context.Context, classID, lectureID, studentID string, duration float64) (StartResult, error) {
	if duration <= 0 {
		return StartResult{}, core.NewValidationError(nil, core.FieldError{Field: "duration", Error: "must be greater than 0"})
	}
	if err := m.svc.checkAccess(ctx, classID, lectureID, studentID); err != nil {
		return StartResult{}, err
	}
	view, err := m.svc.Get(ctx, classID, lectureID, studentID)
	if err != nil {
		return StartResult{}, err
	}

	now := nowFunc()
	sess := &session{
		id:        uuid.NewString(),
		classID:   classID,
		lectureID: lectureID,
		studentID: studentID,
		tracker:   NewTracker(m.opts, duration, view.ProgressRate, view.LastPosition, now),
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return StartResult{
		SessionID:     sess.id,
		ResumeAt:      sess.tracker.LastPosition(),
		HighWaterMark: sess.tracker.HighWaterMark(),
		Rate:          sess.tracker.Rate(),
		Completed:     sess.tracker.Complete(),
	}, nil
}

// Heartbeat feeds the player position to the session tracker. Progress is persisted when the
// cadence is due while playing, and always when the player is paused or ended.
func (m *SessionManager) Heartbeat(ctx context.Context, sessionID, studentID string, current float64, state string) (HeartbeatResult, error) {
	sess, err := m.get(sessionID, studentID)
	if err != nil {
		return HeartbeatResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := nowFunc()
	sess.lastSeen = now
	dec := sess.tracker.ObserveAt(current, now)
	if dec.Action == ActionSeek {
		skipBlocks.Inc()
	}

	res := HeartbeatResult{Action: dec.Action, SeekTo: dec.SeekTo}
	if state != StatePlaying || sess.tracker.Due(now) {
		if err := m.persist(ctx, sess, now); err != nil {
			return HeartbeatResult{}, err
		}
		res.Persisted = true
	}
	res.Rate = sess.tracker.Rate()
	res.Completed = sess.tracker.Complete()
	return res, nil
}

// Stop persists the final position and closes the session.
func (m *SessionManager) Stop(ctx context.Context, sessionID, studentID string, current *float64) (HeartbeatResult, error) {
	sess, err := m.get(sessionID, studentID)
	if err != nil {
		return HeartbeatResult{}, err
	}
	m.remove(sess.id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := nowFunc()
	if current != nil {
		sess.tracker.ObserveAt(*current, now)
	}
	if err := m.persist(ctx, sess, now); err != nil {
		return HeartbeatResult{}, err
	}
	return HeartbeatResult{
		Action:    ActionContinue,
		Rate:      sess.tracker.Rate(),
		Completed: sess.tracker.Complete(),
		Persisted: true,
	}, nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweeper and checkpoints every live session.
func (m *SessionManager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done

	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		sessions = append(sessions, sess)
		delete(m.sessions, id)
	}
	activeSessions.Set(0)
	m.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		sess.mu.Lock()
		err := m.persist(ctx, sess, nowFunc())
		sess.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "checkpointing session %s", sess.id)
		}
	}
	return firstErr
}

func (m *SessionManager) get(sessionID, studentID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.studentID != studentID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (m *SessionManager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}

// persist must be called with sess.mu held.
func (m *SessionManager) persist(ctx context.Context, sess *session, now time.Time) error {
	rate, pos := sess.tracker.Checkpoint(sess.tracker.LastPosition(), now)
	_, err := m.svc.UpdateProgress(ctx, sess.classID, sess.lectureID, sess.studentID, rate, &pos)
	return errors.Wrap(err, "persisting playback progress")
}

func (m *SessionManager) sweep() {
	defer close(m.done)

	interval := m.ttl / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.expire(nowFunc())
		}
	}
}

// expire checkpoints and removes the sessions idle for longer than the ttl.
func (m *SessionManager) expire(now time.Time) {
	m.mu.Lock()
	var idle []*session
	for id, sess := range m.sessions {
		sess.mu.Lock()
		if now.Sub(sess.lastSeen) > m.ttl {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
		sess.mu.Unlock()
	}
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, sess := range idle {
		sess.mu.Lock()
		if err := m.persist(context.Background(), sess, now); err != nil {
			m.logger.Warn("checkpointing expired playback session", err)
		}
		sess.mu.Unlock()
	}
}
