package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound    = core.NewNotFoundError("lecture view")
	ErrNotEnrolled = errors.New("not enrolled in this class")

	errWrongClass       = "this lecture does not belong to the class"
	errNegativePosition = "last position cannot be negative"
)

type (
	Repository interface {
		// UpsertView creates the view of the student or merges upd into it (see LectureView.Merge),
		// atomically. It returns the stored view and the rate it had before (0 when created).
		UpsertView(ctx context.Context, upd ViewUpdate) (LectureView, int, error)
		GetView(ctx context.Context, classID, lectureID, studentID string) (LectureView, error)
		GetViewsByClass(ctx context.Context, classID string) ([]LectureView, error)
		GetViewsByClassAndStudent(ctx context.Context, classID, studentID string) ([]LectureView, error)
	}

	// ClassReader gives access to lectures and enrollments, satisfied by *class.Service.
	ClassReader interface {
		GetLecture(ctx context.Context, id string) (class.Lecture, error)
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	}

	Service struct {
		repo      Repository
		classes   ClassReader
		events    core.EventPublisher
		threshold int
	}
)

func NewService(conf *core.Config, repo Repository, classes ClassReader, events core.EventPublisher) *Service {
	threshold := conf.Progress.CompletionThreshold
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultCompletionThreshold
	}
	return &Service{
		repo:      repo,
		classes:   classes,
		events:    events,
		threshold: threshold,
	}
}

func (svc *Service) Threshold() int { return svc.threshold }

// Status returns the status of a progress rate.
func (svc *Service) Status(rate int) string {
	return StatusOf(rate, svc.threshold)
}

// UpdateProgress records the progress of an enrolled student on a lecture of the class.
// The stored rate only grows; the last position is replaced whenever given.
// Rates must come from a Tracker: students report positions through SavePosition.
func (svc *Service) UpdateProgress(ctx context.Context, classID, lectureID, studentID string, rate int, lastPosition *float64) (LectureView, error) {
	if lastPosition != nil && *lastPosition < 0 {
		return LectureView{}, core.NewValidationError(nil, core.FieldError{Field: "last_position", Error: errNegativePosition})
	}

	if err := svc.checkAccess(ctx, classID, lectureID, studentID); err != nil {
		return LectureView{}, err
	}

	view, prevRate, err := svc.repo.UpsertView(ctx, ViewUpdate{
		ClassID:      classID,
		LectureID:    lectureID,
		StudentID:    studentID,
		Rate:         clampRate(rate),
		LastPosition: lastPosition,
		ViewedAt:     nowFunc().UTC(),
	})
	if err != nil {
		return LectureView{}, errors.Wrap(err, "upserting lecture view")
	}
	progressUpdates.Inc()

	if prevRate < svc.threshold && view.ProgressRate >= svc.threshold {
		lecturesCompleted.Inc()
		svc.events.Publish(core.EventLectureCompleted, studentID, map[string]interface{}{
			"class_id":   classID,
			"lecture_id": lectureID,
			"rate":       view.ProgressRate,
		})
	}
	return view, nil
}

// SavePosition replaces the last position of an enrolled student on a lecture without
// crediting any progress. Trackers resume from it only up to what the stored rate covers.
func (svc *Service) SavePosition(ctx context.Context, classID, lectureID, studentID string, lastPosition float64) (LectureView, error) {
	if lastPosition < 0 {
		return LectureView{}, core.NewValidationError(nil, core.FieldError{Field: "last_position", Error: errNegativePosition})
	}

	if err := svc.checkAccess(ctx, classID, lectureID, studentID); err != nil {
		return LectureView{}, err
	}

	view, _, err := svc.repo.UpsertView(ctx, ViewUpdate{
		ClassID:      classID,
		LectureID:    lectureID,
		StudentID:    studentID,
		LastPosition: &lastPosition,
		ViewedAt:     nowFunc().UTC(),
	})
	if err != nil {
		return LectureView{}, errors.Wrap(err, "upserting lecture view")
	}
	return view, nil
}

// checkAccess makes sure the lecture belongs to the class and the student is enrolled in it.
func (svc *Service) checkAccess(ctx context.Context, classID, lectureID, studentID string) error {
	lec, err := svc.classes.GetLecture(ctx, lectureID)
	if err != nil {
		return errors.Wrap(err, "finding lecture by ID")
	}
	if lec.ClassID != classID {
		return core.NewValidationError(nil, core.FieldError{Field: "lecture_id", Error: errWrongClass})
	}
	enrolled, err := svc.classes.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// Get returns the view of a student on a lecture, a zero-rate view when there is none yet.
func (svc *Service) Get(ctx context.Context, classID, lectureID, studentID string) (LectureView, error) {
	view, err := svc.repo.GetView(ctx, classID, lectureID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return LectureView{ClassID: classID, LectureID: lectureID, StudentID: studentID}, nil
		}
		return LectureView{}, errors.Wrap(err, "finding lecture view")
	}
	return view, nil
}

func (svc *Service) GetByClass(ctx context.Context, classID string) ([]LectureView, error) {
	return svc.repo.GetViewsByClass(ctx, classID)
}

func (svc *Service) GetByClassAndStudent(ctx context.Context, classID, studentID string) ([]LectureView, error) {
	return svc.repo.GetViewsByClassAndStudent(ctx, classID, studentID)
}
