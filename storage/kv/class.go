package kv

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
)

const (
	classesCol     = "classes"
	lecturesCol    = "lectures"
	resourcesCol   = "resources"
	qnasCol        = "qnas"
	enrollmentsCol = "enrollments" // enrollments/<classID>/<studentID>
	viewsCol       = "views"       // views/<classID>/<lectureID>/<studentID>
)

type classRepository struct {
	store *Store
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(store *Store) *classRepository {
	return &classRepository{store: store}
}

// sortByCreation orders records by creation time, the ID breaking ties.
func sortByCreation[T any](recs []T, fields func(T) (time.Time, string)) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, idi := fields(recs[i])
		tj, idj := fields(recs[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}

// findOne decodes the record at k into v, mapping a missing key to nf.
func (repo *classRepository) findOne(k []byte, v interface{}, nf error, msg string) error {
	return repo.store.view(func(txn *badger.Txn) error {
		if err := get(txn, k, v); err != nil {
			return trapNotFound(err, nf, msg)
		}
		return nil
	})
}

// insert stores v at k, failing when k is already taken.
func (repo *classRepository) insert(k []byte, v interface{}, msg string) error {
	err := repo.store.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, k)
		if err != nil {
			return err
		}
		if ok {
			return errors.Errorf("%s already exists", k)
		}
		return set(txn, k, v)
	})
	return errors.Wrap(err, msg)
}

// replace overwrites the record at k, failing with nf when it does not exist.
func (repo *classRepository) replace(k []byte, v interface{}, nf error, msg string) error {
	return repo.store.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, k)
		if err != nil {
			return errors.Wrap(err, msg)
		}
		if !ok {
			return nf
		}
		return errors.Wrap(set(txn, k, v), msg)
	})
}

// Classes

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	return cls, repo.insert(key(classesCol, cls.ID), cls, "inserting class")
}

func (repo *classRepository) QueryClasses(_ context.Context, filter class.ClassFilter) ([]class.Class, error) {
	search := strings.ToLower(filter.Search)
	var classes []class.Class
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		classes, err = scanAll(txn, prefix(classesCol), func(cls class.Class) bool {
			if filter.ProfID != "" && cls.ProfID != filter.ProfID {
				return false
			}
			return search == "" ||
				strings.Contains(strings.ToLower(cls.Title), search) ||
				strings.Contains(strings.ToLower(cls.Description), search)
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	sortByCreation(classes, func(c class.Class) (time.Time, string) { return c.CreatedAt, c.ID })
	return nonNil(classes), nil
}

func (repo *classRepository) GetClassByID(_ context.Context, id string) (class.Class, error) {
	var cls class.Class
	err := repo.findOne(key(classesCol, id), &cls, class.ErrNotFound, "getting class")
	return cls, err
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	return cls, repo.replace(key(classesCol, cls.ID), cls, class.ErrNotFound, "updating class")
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	return repo.store.update(func(txn *badger.Txn) error {
		k := key(classesCol, id)
		ok, err := exists(txn, k)
		if err != nil {
			return errors.Wrap(err, "getting class")
		}
		if !ok {
			return class.ErrNotFound
		}
		if err := txn.Delete(k); err != nil {
			return errors.Wrap(err, "deleting class")
		}

		byClass := fieldIn("class_id", id)
		for _, col := range []string{lecturesCol, resourcesCol, qnasCol} {
			if err := deletePrefix(txn, prefix(col), byClass); err != nil {
				return errors.Wrap(err, "deleting "+col)
			}
		}
		if err := deletePrefix(txn, prefix(enrollmentsCol, id), nil); err != nil {
			return errors.Wrap(err, "deleting enrollments")
		}
		return errors.Wrap(deletePrefix(txn, prefix(viewsCol, id), nil), "deleting lecture views")
	})
}

// Lectures

func (repo *classRepository) CreateLecture(_ context.Context, lec class.Lecture) (class.Lecture, error) {
	return lec, repo.insert(key(lecturesCol, lec.ID), lec, "inserting lecture")
}

func (repo *classRepository) GetLecturesByClass(_ context.Context, classID string) ([]class.Lecture, error) {
	var lectures []class.Lecture
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		lectures, err = scanAll(txn, prefix(lecturesCol), func(lec class.Lecture) bool { return lec.ClassID == classID })
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying lectures")
	}
	sortByCreation(lectures, func(l class.Lecture) (time.Time, string) { return l.CreatedAt, l.ID })
	return nonNil(lectures), nil
}

func (repo *classRepository) GetLectureByID(_ context.Context, id string) (class.Lecture, error) {
	var lec class.Lecture
	err := repo.findOne(key(lecturesCol, id), &lec, class.ErrLectureNotFound, "getting lecture")
	return lec, err
}

func (repo *classRepository) UpdateLecture(_ context.Context, lec class.Lecture) (class.Lecture, error) {
	return lec, repo.replace(key(lecturesCol, lec.ID), lec, class.ErrLectureNotFound, "updating lecture")
}

func (repo *classRepository) DeleteLecture(_ context.Context, id string) error {
	return repo.store.update(func(txn *badger.Txn) error {
		var lec class.Lecture
		k := key(lecturesCol, id)
		if err := get(txn, k, &lec); err != nil {
			return trapNotFound(err, class.ErrLectureNotFound, "getting lecture")
		}
		if err := txn.Delete(k); err != nil {
			return errors.Wrap(err, "deleting lecture")
		}
		if err := deletePrefix(txn, prefix(resourcesCol), fieldIn("lecture_id", id)); err != nil {
			return errors.Wrap(err, "deleting resources")
		}
		return errors.Wrap(deletePrefix(txn, prefix(viewsCol, lec.ClassID, id), nil), "deleting lecture views")
	})
}

// Resources

func (repo *classRepository) CreateResource(_ context.Context, res class.Resource) (class.Resource, error) {
	return res, repo.insert(key(resourcesCol, res.ID), res, "inserting resource")
}

func (repo *classRepository) GetResourcesByClass(_ context.Context, classID string) ([]class.Resource, error) {
	var resources []class.Resource
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		resources, err = scanAll(txn, prefix(resourcesCol), func(res class.Resource) bool { return res.ClassID == classID })
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	sortByCreation(resources, func(r class.Resource) (time.Time, string) { return r.CreatedAt, r.ID })
	return nonNil(resources), nil
}

func (repo *classRepository) GetResourceByID(_ context.Context, id string) (class.Resource, error) {
	var res class.Resource
	err := repo.findOne(key(resourcesCol, id), &res, class.ErrResourceNotFound, "getting resource")
	return res, err
}

func (repo *classRepository) UpdateResource(_ context.Context, res class.Resource) (class.Resource, error) {
	return res, repo.replace(key(resourcesCol, res.ID), res, class.ErrResourceNotFound, "updating resource")
}

func (repo *classRepository) DeleteResource(_ context.Context, id string) error {
	return repo.delete(key(resourcesCol, id), class.ErrResourceNotFound, "deleting resource")
}

func (repo *classRepository) delete(k []byte, nf error, msg string) error {
	return repo.store.update(func(txn *badger.Txn) error {
		ok, err := exists(txn, k)
		if err != nil {
			return errors.Wrap(err, msg)
		}
		if !ok {
			return nf
		}
		return errors.Wrap(txn.Delete(k), msg)
	})
}

// QnAs

func (repo *classRepository) CreateQnA(_ context.Context, qna class.QnA) (class.QnA, error) {
	return qna, repo.insert(key(qnasCol, qna.ID), qna, "inserting qna")
}

func (repo *classRepository) GetQnAsByClass(_ context.Context, classID string) ([]class.QnA, error) {
	var qnas []class.QnA
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		qnas, err = scanAll(txn, prefix(qnasCol), func(qna class.QnA) bool { return qna.ClassID == classID })
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying qnas")
	}
	sortByCreation(qnas, func(q class.QnA) (time.Time, string) { return q.CreatedAt, q.ID })
	return nonNil(qnas), nil
}

func (repo *classRepository) GetQnAByID(_ context.Context, id string) (class.QnA, error) {
	var qna class.QnA
	err := repo.findOne(key(qnasCol, id), &qna, class.ErrQnANotFound, "getting qna")
	return qna, err
}

func (repo *classRepository) DeleteQnA(_ context.Context, id string) error {
	return repo.delete(key(qnasCol, id), class.ErrQnANotFound, "deleting qna")
}

// Enrollments

func (repo *classRepository) CreateEnrollment(_ context.Context, enr class.Enrollment) (class.Enrollment, error) {
	err := repo.store.update(func(txn *badger.Txn) error {
		k := key(enrollmentsCol, enr.ClassID, enr.StudentID)
		ok, err := exists(txn, k)
		if err != nil {
			return errors.Wrap(err, "getting enrollment")
		}
		if ok {
			return class.ErrAlreadyEnrolled
		}
		return errors.Wrap(set(txn, k, enr), "inserting enrollment")
	})
	return enr, err
}

func (repo *classRepository) GetEnrollmentsByClass(_ context.Context, classID string) ([]class.Enrollment, error) {
	return repo.queryEnrollments(prefix(enrollmentsCol, classID), nil)
}

func (repo *classRepository) GetEnrollmentsByStudent(_ context.Context, studentID string) ([]class.Enrollment, error) {
	return repo.queryEnrollments(prefix(enrollmentsCol), func(enr class.Enrollment) bool { return enr.StudentID == studentID })
}

func (repo *classRepository) queryEnrollments(p []byte, keep func(class.Enrollment) bool) ([]class.Enrollment, error) {
	var enrollments []class.Enrollment
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		enrollments, err = scanAll(txn, p, keep)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	sortByCreation(enrollments, func(e class.Enrollment) (time.Time, string) { return e.EnrolledAt, e.ID })
	return nonNil(enrollments), nil
}

func (repo *classRepository) GetEnrollment(_ context.Context, classID, studentID string) (class.Enrollment, error) {
	var enr class.Enrollment
	err := repo.findOne(key(enrollmentsCol, classID, studentID), &enr, class.ErrEnrollmentNotFound, "getting enrollment")
	return enr, err
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
