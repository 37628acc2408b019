package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
)

type memRepo struct {
	mu    sync.Mutex
	views map[string]LectureView
}

func newMemRepo() *memRepo {
	return &memRepo{views: make(map[string]LectureView)}
}

func viewKey(classID, lectureID, studentID string) string {
	return classID + "/" + lectureID + "/" + studentID
}

func (r *memRepo) UpsertView(_ context.Context, upd ViewUpdate) (LectureView, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := viewKey(upd.ClassID, upd.LectureID, upd.StudentID)
	view, ok := r.views[k]
	if !ok {
		view = LectureView{
			ID:        uuid.NewString(),
			ClassID:   upd.ClassID,
			LectureID: upd.LectureID,
			StudentID: upd.StudentID,
		}
	}
	prev := view.ProgressRate
	view = view.Merge(upd)
	r.views[k] = view
	return view, prev, nil
}

func (r *memRepo) GetView(_ context.Context, classID, lectureID, studentID string) (LectureView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[viewKey(classID, lectureID, studentID)]
	if !ok {
		return LectureView{}, ErrNotFound
	}
	return view, nil
}

func (r *memRepo) GetViewsByClass(_ context.Context, classID string) ([]LectureView, error) {
	return r.filter(func(v LectureView) bool { return v.ClassID == classID }), nil
}

func (r *memRepo) GetViewsByClassAndStudent(_ context.Context, classID, studentID string) ([]LectureView, error) {
	return r.filter(func(v LectureView) bool { return v.ClassID == classID && v.StudentID == studentID }), nil
}

func (r *memRepo) filter(keep func(LectureView) bool) []LectureView {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]LectureView, 0)
	for _, v := range r.views {
		if keep(v) {
			views = append(views, v)
		}
	}
	return views
}

type fakeClasses struct {
	lectures map[string]class.Lecture
	enrolled map[string]bool // classID/studentID
}

func newFakeClasses() *fakeClasses {
	return &fakeClasses{
		lectures: map[string]class.Lecture{
			"lec1": {ID: "lec1", ClassID: "cls1"},
			"lec2": {ID: "lec2", ClassID: "cls1"},
			"lec3": {ID: "lec3", ClassID: "cls2"},
		},
		enrolled: map[string]bool{"cls1/stud1": true, "cls2/stud1": true, "cls1/stud2": true},
	}
}

func (c *fakeClasses) GetLecture(_ context.Context, id string) (class.Lecture, error) {
	lec, ok := c.lectures[id]
	if !ok {
		return class.Lecture{}, class.ErrLectureNotFound
	}
	return lec, nil
}

func (c *fakeClasses) IsEnrolled(_ context.Context, classID, studentID string) (bool, error) {
	return c.enrolled[classID+"/"+studentID], nil
}

type recorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recorder) Publish(subject, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	r.subjects = append(r.subjects, subject)
	r.mu.Unlock()
}

func (r *recorder) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

func newTestService() (*Service, *memRepo, *recorder) {
	repo := newMemRepo()
	events := new(recorder)
	svc := NewService(core.NewTestConfig(), repo, newFakeClasses(), events)
	return svc, repo, events
}

func floatPtr(f float64) *float64 { return &f }
