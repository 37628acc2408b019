package kv

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core/progress"
)

type progressRepository struct {
	store *Store
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(store *Store) *progressRepository {
	return &progressRepository{store: store}
}

// UpsertView reads, merges and writes the view in one transaction; conflicting writers are retried
// so concurrent reports never lower the stored rate.
func (repo *progressRepository) UpsertView(_ context.Context, upd progress.ViewUpdate) (progress.LectureView, int, error) {
	var (
		view     progress.LectureView
		prevRate int
	)
	err := repo.store.update(func(txn *badger.Txn) error {
		k := key(viewsCol, upd.ClassID, upd.LectureID, upd.StudentID)
		view = progress.LectureView{}
		prevRate = 0

		err := get(txn, k, &view)
		switch {
		case err == badger.ErrKeyNotFound:
			view = progress.LectureView{
				ID:        uuid.NewString(),
				ClassID:   upd.ClassID,
				LectureID: upd.LectureID,
				StudentID: upd.StudentID,
			}
		case err != nil:
			return errors.Wrap(err, "getting lecture view")
		default:
			prevRate = view.ProgressRate
		}

		view = view.Merge(upd)
		return errors.Wrap(set(txn, k, view), "saving lecture view")
	})
	if err != nil {
		return progress.LectureView{}, 0, errors.Wrap(err, "upserting lecture view")
	}
	return view, prevRate, nil
}

func (repo *progressRepository) GetView(_ context.Context, classID, lectureID, studentID string) (progress.LectureView, error) {
	var view progress.LectureView
	err := repo.store.view(func(txn *badger.Txn) error {
		if err := get(txn, key(viewsCol, classID, lectureID, studentID), &view); err != nil {
			return trapNotFound(err, progress.ErrNotFound, "getting lecture view")
		}
		return nil
	})
	return view, err
}

func (repo *progressRepository) GetViewsByClass(_ context.Context, classID string) ([]progress.LectureView, error) {
	return repo.query(prefix(viewsCol, classID), nil)
}

func (repo *progressRepository) GetViewsByClassAndStudent(_ context.Context, classID, studentID string) ([]progress.LectureView, error) {
	return repo.query(prefix(viewsCol, classID), func(v progress.LectureView) bool { return v.StudentID == studentID })
}

// query returns views in key order: by lecture, then by student.
func (repo *progressRepository) query(p []byte, keep func(progress.LectureView) bool) ([]progress.LectureView, error) {
	var views []progress.LectureView
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		views, err = scanAll(txn, p, keep)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying lecture views")
	}
	return nonNil(views), nil
}
