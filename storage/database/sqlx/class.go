package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
)

const (
	classColumns      = "id, title, description, prof_id, created_at, updated_at"
	lectureColumns    = "id, class_id, title, description, youtube_link, video_id, created_at, updated_at"
	resourceColumns   = "id, class_id, lecture_id, title, description, filename, stored, size, content_type, created_at"
	qnaColumns        = "id, class_id, author_id, title, content, created_at"
	enrollmentColumns = "id, class_id, student_id, enrolled_at"
)

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) get(ctx context.Context, dest interface{}, nf error, msg, query string, args ...interface{}) error {
	if err := repo.db.GetContext(ctx, dest, query, args...); err != nil {
		return trapNoRowsErr(err, nf, msg)
	}
	return nil
}

// Classes

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO classes ("+classColumns+") VALUES (:id, :title, :description, :prof_id, :created_at, :updated_at)", cls)
	return cls, errors.Wrap(err, "inserting class")
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter class.ClassFilter) ([]class.Class, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ProfID != "" {
		args = append(args, filter.ProfID)
		conds = append(conds, "prof_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := "$" + strconv.Itoa(len(args))
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	q := "SELECT " + classColumns + " FROM classes"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at, id"

	var classes []class.Class
	if err := repo.db.SelectContext(ctx, &classes, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return nonNil(classes), nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id string) (class.Class, error) {
	var cls class.Class
	err := repo.get(ctx, &cls, class.ErrNotFound, "getting class", "SELECT "+classColumns+" FROM classes WHERE id = $1", id)
	return cls, err
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	return cls, execOne(ctx, repo.db, class.ErrNotFound, "updating class",
		"UPDATE classes SET title = $2, description = $3, prof_id = $4, updated_at = $5 WHERE id = $1",
		cls.ID, cls.Title, cls.Description, cls.ProfID, cls.UpdatedAt)
}

// DeleteClass relies on ON DELETE CASCADE for the class content.
func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, class.ErrNotFound, "deleting class", "DELETE FROM classes WHERE id = $1", id)
}

// Lectures

func (repo *classRepository) CreateLecture(ctx context.Context, lec class.Lecture) (class.Lecture, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO lectures ("+lectureColumns+") VALUES (:id, :class_id, :title, :description, :youtube_link, :video_id, :created_at, :updated_at)", lec)
	return lec, errors.Wrap(err, "inserting lecture")
}

func (repo *classRepository) GetLecturesByClass(ctx context.Context, classID string) ([]class.Lecture, error) {
	var lectures []class.Lecture
	err := repo.db.SelectContext(ctx, &lectures, "SELECT "+lectureColumns+" FROM lectures WHERE class_id = $1 ORDER BY created_at, id", classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lectures")
	}
	return nonNil(lectures), nil
}

func (repo *classRepository) GetLectureByID(ctx context.Context, id string) (class.Lecture, error) {
	var lec class.Lecture
	err := repo.get(ctx, &lec, class.ErrLectureNotFound, "getting lecture", "SELECT "+lectureColumns+" FROM lectures WHERE id = $1", id)
	return lec, err
}

func (repo *classRepository) UpdateLecture(ctx context.Context, lec class.Lecture) (class.Lecture, error) {
	return lec, execOne(ctx, repo.db, class.ErrLectureNotFound, "updating lecture",
		"UPDATE lectures SET title = $2, description = $3, youtube_link = $4, video_id = $5, updated_at = $6 WHERE id = $1",
		lec.ID, lec.Title, lec.Description, lec.YoutubeLink, lec.VideoID, lec.UpdatedAt)
}

// DeleteLecture deletes the lecture resources; views go with ON DELETE CASCADE.
func (repo *classRepository) DeleteLecture(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM resources WHERE lecture_id = $1", id); err != nil {
			return errors.Wrap(err, "deleting lecture resources")
		}
		return execOne(ctx, tx, class.ErrLectureNotFound, "deleting lecture", "DELETE FROM lectures WHERE id = $1", id)
	})
}

// Resources

func (repo *classRepository) CreateResource(ctx context.Context, res class.Resource) (class.Resource, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO resources ("+resourceColumns+") VALUES (:id, :class_id, :lecture_id, :title, :description, :filename, :stored, :size, :content_type, :created_at)", res)
	return res, errors.Wrap(err, "inserting resource")
}

func (repo *classRepository) GetResourcesByClass(ctx context.Context, classID string) ([]class.Resource, error) {
	var resources []class.Resource
	err := repo.db.SelectContext(ctx, &resources, "SELECT "+resourceColumns+" FROM resources WHERE class_id = $1 ORDER BY created_at, id", classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	return nonNil(resources), nil
}

func (repo *classRepository) GetResourceByID(ctx context.Context, id string) (class.Resource, error) {
	var res class.Resource
	err := repo.get(ctx, &res, class.ErrResourceNotFound, "getting resource", "SELECT "+resourceColumns+" FROM resources WHERE id = $1", id)
	return res, err
}

func (repo *classRepository) UpdateResource(ctx context.Context, res class.Resource) (class.Resource, error) {
	return res, execOne(ctx, repo.db, class.ErrResourceNotFound, "updating resource",
		"UPDATE resources SET title = $2, description = $3 WHERE id = $1", res.ID, res.Title, res.Description)
}

func (repo *classRepository) DeleteResource(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, class.ErrResourceNotFound, "deleting resource", "DELETE FROM resources WHERE id = $1", id)
}

// QnAs

func (repo *classRepository) CreateQnA(ctx context.Context, qna class.QnA) (class.QnA, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO qnas ("+qnaColumns+") VALUES (:id, :class_id, :author_id, :title, :content, :created_at)", qna)
	return qna, errors.Wrap(err, "inserting qna")
}

func (repo *classRepository) GetQnAsByClass(ctx context.Context, classID string) ([]class.QnA, error) {
	var qnas []class.QnA
	err := repo.db.SelectContext(ctx, &qnas, "SELECT "+qnaColumns+" FROM qnas WHERE class_id = $1 ORDER BY created_at, id", classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying qnas")
	}
	return nonNil(qnas), nil
}

func (repo *classRepository) GetQnAByID(ctx context.Context, id string) (class.QnA, error) {
	var qna class.QnA
	err := repo.get(ctx, &qna, class.ErrQnANotFound, "getting qna", "SELECT "+qnaColumns+" FROM qnas WHERE id = $1", id)
	return qna, err
}

func (repo *classRepository) DeleteQnA(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, class.ErrQnANotFound, "deleting qna", "DELETE FROM qnas WHERE id = $1", id)
}

// Enrollments

func (repo *classRepository) CreateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO enrollments ("+enrollmentColumns+") VALUES (:id, :class_id, :student_id, :enrolled_at)", enr)
	if err != nil {
		if uniqueConstraint(err) == "enrollments_class_student_key" {
			return class.Enrollment{}, class.ErrAlreadyEnrolled
		}
		return class.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo *classRepository) GetEnrollmentsByClass(ctx context.Context, classID string) ([]class.Enrollment, error) {
	return repo.queryEnrollments(ctx, "class_id", classID)
}

func (repo *classRepository) GetEnrollmentsByStudent(ctx context.Context, studentID string) ([]class.Enrollment, error) {
	return repo.queryEnrollments(ctx, "student_id", studentID)
}

func (repo *classRepository) queryEnrollments(ctx context.Context, column, val string) ([]class.Enrollment, error) {
	var enrollments []class.Enrollment
	err := repo.db.SelectContext(ctx, &enrollments,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE "+column+" = $1 ORDER BY enrolled_at, id", val)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return nonNil(enrollments), nil
}

func (repo *classRepository) GetEnrollment(ctx context.Context, classID, studentID string) (class.Enrollment, error) {
	var enr class.Enrollment
	err := repo.get(ctx, &enr, class.ErrEnrollmentNotFound, "getting enrollment",
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE class_id = $1 AND student_id = $2", classID, studentID)
	return enr, err
}
