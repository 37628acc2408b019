package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/progress"
)

const viewColumns = "id, class_id, lecture_id, student_id, progress_rate, last_position, viewed_at"

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

// UpsertView makes sure the row exists, locks it to read the previous rate, then merges upd:
// GREATEST keeps the rate monotonic, COALESCE keeps the position when upd has none.
func (repo *progressRepository) UpsertView(ctx context.Context, upd progress.ViewUpdate) (progress.LectureView, int, error) {
	var (
		view     progress.LectureView
		prevRate int
	)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lecture_views (`+viewColumns+`) VALUES ($1, $2, $3, $4, 0, 0, $5)
			ON CONFLICT (class_id, lecture_id, student_id) DO NOTHING`,
			uuid.NewString(), upd.ClassID, upd.LectureID, upd.StudentID, upd.ViewedAt)
		if err != nil {
			return errors.Wrap(err, "inserting lecture view")
		}

		err = tx.GetContext(ctx, &prevRate, `
			SELECT progress_rate FROM lecture_views
			WHERE class_id = $1 AND lecture_id = $2 AND student_id = $3
			FOR UPDATE`,
			upd.ClassID, upd.LectureID, upd.StudentID)
		if err != nil {
			return errors.Wrap(err, "locking lecture view")
		}

		err = tx.GetContext(ctx, &view, `
			UPDATE lecture_views SET
				progress_rate = GREATEST(progress_rate, $4),
				last_position = COALESCE($5, last_position),
				viewed_at = $6
			WHERE class_id = $1 AND lecture_id = $2 AND student_id = $3
			RETURNING `+viewColumns,
			upd.ClassID, upd.LectureID, upd.StudentID, upd.Rate, upd.LastPosition, upd.ViewedAt)
		return errors.Wrap(err, "updating lecture view")
	})
	if err != nil {
		return progress.LectureView{}, 0, errors.Wrap(err, "upserting lecture view")
	}
	return view, prevRate, nil
}

func (repo *progressRepository) GetView(ctx context.Context, classID, lectureID, studentID string) (progress.LectureView, error) {
	var view progress.LectureView
	err := repo.db.GetContext(ctx, &view,
		"SELECT "+viewColumns+" FROM lecture_views WHERE class_id = $1 AND lecture_id = $2 AND student_id = $3",
		classID, lectureID, studentID)
	if err != nil {
		return progress.LectureView{}, trapNoRowsErr(err, progress.ErrNotFound, "getting lecture view")
	}
	return view, nil
}

func (repo *progressRepository) GetViewsByClass(ctx context.Context, classID string) ([]progress.LectureView, error) {
	return repo.query(ctx, "class_id = $1", classID)
}

func (repo *progressRepository) GetViewsByClassAndStudent(ctx context.Context, classID, studentID string) ([]progress.LectureView, error) {
	return repo.query(ctx, "class_id = $1 AND student_id = $2", classID, studentID)
}

func (repo *progressRepository) query(ctx context.Context, where string, args ...interface{}) ([]progress.LectureView, error) {
	var views []progress.LectureView
	err := repo.db.SelectContext(ctx, &views,
		"SELECT "+viewColumns+" FROM lecture_views WHERE "+where+" ORDER BY lecture_id, student_id", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying lecture views")
	}
	return nonNil(views), nil
}
