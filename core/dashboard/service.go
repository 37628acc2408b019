// Package dashboard joins users, classes and progress into what each role screen shows.
package dashboard

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
)

type (
	UserReader interface {
		QueryAll(ctx context.Context) ([]user.User, error)
	}

	// ClassReader is satisfied by *class.Service.
	ClassReader interface {
		GetAll(ctx context.Context) ([]class.Class, error)
		GetByProf(ctx context.Context, profID string) ([]class.Class, error)
		GetByID(ctx context.Context, id string) (class.Class, error)
		GetLectures(ctx context.Context, classID string) ([]class.Lecture, error)
		GetLecture(ctx context.Context, id string) (class.Lecture, error)
		GetResources(ctx context.Context, classID string) ([]class.Resource, error)
		GetQnAs(ctx context.Context, classID string) ([]class.QnA, error)
		GetEnrollments(ctx context.Context, classID string) ([]class.Enrollment, error)
		GetStudentEnrollments(ctx context.Context, studentID string) ([]class.Enrollment, error)
	}

	// ProgressReader is satisfied by *progress.Service.
	ProgressReader interface {
		GetByClass(ctx context.Context, classID string) ([]progress.LectureView, error)
		GetByClassAndStudent(ctx context.Context, classID, studentID string) ([]progress.LectureView, error)
		Status(rate int) string
	}

	Service struct {
		users    UserReader
		classes  ClassReader
		progress ProgressReader
	}
)

func NewService(users UserReader, classes ClassReader, prog ProgressReader) *Service {
	return &Service{users: users, classes: classes, progress: prog}
}

type userIndex map[string]user.User

func (svc *Service) userIndex(ctx context.Context) (userIndex, error) {
	users, err := svc.users.QueryAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return newUserIndex(users), nil
}

func newUserIndex(users []user.User) userIndex {
	idx := make(userIndex, len(users))
	for _, usr := range users {
		idx[usr.ID] = usr
	}
	return idx
}

// name returns the name of the user, fallback when unknown.
func (idx userIndex) name(id, fallback string) string {
	if usr, ok := idx[id]; ok {
		return usr.Name
	}
	return fallback
}

func (idx userIndex) summary(cls class.Class, fallback string) ClassSummary {
	return ClassSummary{Class: cls, ProfName: idx.name(cls.ProfID, fallback)}
}

// rateIndex maps lecture ID then student ID to the progress rate.
type rateIndex map[string]map[string]progress.LectureView

func newRateIndex(views []progress.LectureView) rateIndex {
	idx := make(rateIndex)
	for _, v := range views {
		if idx[v.LectureID] == nil {
			idx[v.LectureID] = make(map[string]progress.LectureView)
		}
		idx[v.LectureID][v.StudentID] = v
	}
	return idx
}

func (idx rateIndex) rate(lectureID, studentID string) int {
	return idx[lectureID][studentID].ProgressRate
}

// average returns the rounded mean rate of the student over lectures, missing views counting as 0.
func (idx rateIndex) average(lectures []class.Lecture, studentID string) int {
	if len(lectures) == 0 {
		return 0
	}
	total := 0
	for _, lec := range lectures {
		total += idx.rate(lec.ID, studentID)
	}
	return int(math.Round(float64(total) / float64(len(lectures))))
}

// Admin returns every user and every class with its professor name.
func (svc *Service) Admin(ctx context.Context) (AdminDashboard, error) {
	users, err := svc.users.QueryAll(ctx)
	if err != nil {
		return AdminDashboard{}, errors.Wrap(err, "querying users")
	}
	idx := newUserIndex(users)
	classes, err := svc.classes.GetAll(ctx)
	if err != nil {
		return AdminDashboard{}, errors.Wrap(err, "querying classes")
	}

	dash := AdminDashboard{Users: users, Classes: make([]ClassSummary, len(classes))}
	for i, cls := range classes {
		dash.Classes[i] = idx.summary(cls, Unassigned)
	}
	return dash, nil
}

// ProfessorClasses returns the classes owned by the professor.
func (svc *Service) ProfessorClasses(ctx context.Context, prof user.User) ([]ClassSummary, error) {
	classes, err := svc.classes.GetByProf(ctx, prof.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying professor classes")
	}
	res := make([]ClassSummary, len(classes))
	for i, cls := range classes {
		res[i] = ClassSummary{Class: cls, ProfName: prof.Name}
	}
	return res, nil
}

func (svc *Service) qnaEntries(ctx context.Context, classID string, users userIndex, viewerID string) ([]QnAEntry, error) {
	qnas, err := svc.classes.GetQnAs(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying qnas")
	}
	entries := make([]QnAEntry, len(qnas))
	for i, qna := range qnas {
		entries[i] = QnAEntry{
			QnA:        qna,
			AuthorName: users.name(qna.AuthorID, qna.AuthorID),
			Mine:       viewerID != "" && qna.AuthorID == viewerID,
		}
	}
	return entries, nil
}

// Class returns the management view of a class: content, QnAs and the progress of the students.
func (svc *Service) Class(ctx context.Context, classID string) (ClassDashboard, error) {
	cls, err := svc.classes.GetByID(ctx, classID)
	if err != nil {
		return ClassDashboard{}, errors.Wrap(err, "finding class by ID")
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return ClassDashboard{}, err
	}
	lectures, err := svc.classes.GetLectures(ctx, classID)
	if err != nil {
		return ClassDashboard{}, errors.Wrap(err, "querying lectures")
	}
	resources, err := svc.classes.GetResources(ctx, classID)
	if err != nil {
		return ClassDashboard{}, errors.Wrap(err, "querying resources")
	}
	qnas, err := svc.qnaEntries(ctx, classID, users, "")
	if err != nil {
		return ClassDashboard{}, err
	}
	enrollments, err := svc.classes.GetEnrollments(ctx, classID)
	if err != nil {
		return ClassDashboard{}, errors.Wrap(err, "querying enrollments")
	}
	views, err := svc.progress.GetByClass(ctx, classID)
	if err != nil {
		return ClassDashboard{}, errors.Wrap(err, "querying lecture views")
	}
	rates := newRateIndex(views)

	students := make([]StudentProgress, len(enrollments))
	for i, enr := range enrollments {
		avg := rates.average(lectures, enr.StudentID)
		students[i] = StudentProgress{
			StudentID:  enr.StudentID,
			Name:       users.name(enr.StudentID, enr.StudentID),
			Username:   users[enr.StudentID].Username,
			AvgRate:    avg,
			Status:     svc.progress.Status(avg),
			EnrolledAt: enr.EnrolledAt,
		}
	}

	return ClassDashboard{
		Class:     users.summary(cls, Unassigned),
		Lectures:  lectures,
		Resources: resources,
		QnAs:      qnas,
		Students:  students,
	}, nil
}

// LectureStats returns the progress on the lecture of every enrolled student.
func (svc *Service) LectureStats(ctx context.Context, lectureID string) (LectureStats, error) {
	lec, err := svc.classes.GetLecture(ctx, lectureID)
	if err != nil {
		return LectureStats{}, errors.Wrap(err, "finding lecture by ID")
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return LectureStats{}, err
	}
	enrollments, err := svc.classes.GetEnrollments(ctx, lec.ClassID)
	if err != nil {
		return LectureStats{}, errors.Wrap(err, "querying enrollments")
	}
	views, err := svc.progress.GetByClass(ctx, lec.ClassID)
	if err != nil {
		return LectureStats{}, errors.Wrap(err, "querying lecture views")
	}
	rates := newRateIndex(views)

	stats := LectureStats{Lecture: lec, Students: make([]LectureStudentStat, 0, len(enrollments))}
	for _, enr := range enrollments {
		usr, ok := users[enr.StudentID]
		if !ok || !usr.IsStudent() {
			continue
		}
		rate := rates.rate(lec.ID, usr.ID)
		stats.Students = append(stats.Students, LectureStudentStat{
			StudentID: usr.ID,
			Name:      usr.Name,
			Username:  usr.Username,
			Rate:      rate,
			Status:    svc.progress.Status(rate),
		})
	}
	return stats, nil
}

func (svc *Service) enrolledClassIDs(ctx context.Context, studentID string) (map[string]bool, []class.Enrollment, error) {
	enrollments, err := svc.classes.GetStudentEnrollments(ctx, studentID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying student enrollments")
	}
	ids := make(map[string]bool, len(enrollments))
	for _, enr := range enrollments {
		ids[enr.ClassID] = true
	}
	return ids, enrollments, nil
}

// Explore returns every class, flagged when the student is enrolled in it.
func (svc *Service) Explore(ctx context.Context, studentID string) ([]ExploreClass, error) {
	classes, err := svc.classes.GetAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	enrolled, _, err := svc.enrolledClassIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]ExploreClass, len(classes))
	for i, cls := range classes {
		res[i] = ExploreClass{
			ClassSummary: users.summary(cls, cls.ProfID),
			IsEnrolled:   enrolled[cls.ID],
		}
	}
	return res, nil
}

// StudentClasses returns the classes the student is enrolled in, in enrollment order.
func (svc *Service) StudentClasses(ctx context.Context, studentID string) ([]ClassSummary, error) {
	_, enrollments, err := svc.enrolledClassIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]ClassSummary, 0, len(enrollments))
	for _, enr := range enrollments {
		cls, err := svc.classes.GetByID(ctx, enr.ClassID)
		if err != nil {
			if errors.Cause(err) == class.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "finding class by ID")
		}
		res = append(res, users.summary(cls, cls.ProfID))
	}
	return res, nil
}

// StudentClass returns the learning view of a class for an enrolled student.
func (svc *Service) StudentClass(ctx context.Context, classID, studentID string) (StudentClassDashboard, error) {
	cls, err := svc.classes.GetByID(ctx, classID)
	if err != nil {
		return StudentClassDashboard{}, errors.Wrap(err, "finding class by ID")
	}
	users, err := svc.userIndex(ctx)
	if err != nil {
		return StudentClassDashboard{}, err
	}
	lectures, err := svc.classes.GetLectures(ctx, classID)
	if err != nil {
		return StudentClassDashboard{}, errors.Wrap(err, "querying lectures")
	}
	resources, err := svc.classes.GetResources(ctx, classID)
	if err != nil {
		return StudentClassDashboard{}, errors.Wrap(err, "querying resources")
	}
	qnas, err := svc.qnaEntries(ctx, classID, users, studentID)
	if err != nil {
		return StudentClassDashboard{}, err
	}
	views, err := svc.progress.GetByClassAndStudent(ctx, classID, studentID)
	if err != nil {
		return StudentClassDashboard{}, errors.Wrap(err, "querying lecture views")
	}
	rates := newRateIndex(views)

	dash := StudentClassDashboard{
		Class:     users.summary(cls, cls.ProfID),
		Lectures:  make([]LectureProgress, len(lectures)),
		Resources: resources,
		QnAs:      qnas,
	}
	for i, lec := range lectures {
		view := rates[lec.ID][studentID]
		dash.Lectures[i] = LectureProgress{
			Lecture:      lec,
			Rate:         view.ProgressRate,
			Status:       svc.progress.Status(view.ProgressRate),
			LastPosition: view.LastPosition,
		}
	}
	dash.AvgRate = rates.average(lectures, studentID)
	dash.Status = svc.progress.Status(dash.AvgRate)
	return dash, nil
}
