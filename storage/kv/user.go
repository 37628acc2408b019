package kv

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

const (
	usersCol      = "users"
	usernameIndex = "idx/username"
	emailIndex    = "idx/email"
)

// userRecord persists the password hash, which User never serializes.
type userRecord struct {
	user.User
	PasswordHash []byte `json:"password_hash"`
}

func newUserRecord(usr user.User) userRecord {
	return userRecord{User: usr, PasswordHash: usr.PasswordHash}
}

func (rec userRecord) toUser() user.User {
	usr := rec.User
	usr.PasswordHash = rec.PasswordHash
	return usr
}

type userRepository struct {
	store *Store
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(store *Store) *userRepository {
	return &userRepository{store: store}
}

// trapNotFound maps badger's missing key error to nf
func trapNotFound(err error, nf error, msg string) error {
	if errors.Cause(err) == badger.ErrKeyNotFound {
		return nf
	}
	return errors.Wrap(err, msg)
}

func getUser(txn *badger.Txn, id string) (userRecord, error) {
	var rec userRecord
	if err := get(txn, key(usersCol, id), &rec); err != nil {
		return userRecord{}, trapNotFound(err, user.ErrNotFound, "getting user")
	}
	return rec, nil
}

func (repo *userRepository) getByIndex(index, val string) (user.User, error) {
	var usr user.User
	err := repo.store.view(func(txn *badger.Txn) error {
		var id string
		if err := get(txn, key(index, strings.ToLower(val)), &id); err != nil {
			return trapNotFound(err, user.ErrNotFound, "reading "+index)
		}
		rec, err := getUser(txn, id)
		if err != nil {
			return err
		}
		usr = rec.toUser()
		return nil
	})
	return usr, err
}

// claimIndexes points the username and email indexes to usr, failing when another user holds them.
func claimIndexes(txn *badger.Txn, usr user.User) error {
	claim := func(index, val string, taken error) error {
		if val == "" {
			return nil
		}
		k := key(index, strings.ToLower(val))
		var owner string
		err := get(txn, k, &owner)
		switch {
		case err == nil && owner != usr.ID:
			return taken
		case err != nil && err != badger.ErrKeyNotFound:
			return errors.Wrap(err, "reading "+index)
		}
		return set(txn, k, usr.ID)
	}
	if err := claim(usernameIndex, usr.Username, user.ErrUsernameExists); err != nil {
		return err
	}
	return claim(emailIndex, usr.Email, user.ErrEmailExists)
}

func releaseIndexes(txn *badger.Txn, usr user.User) error {
	if err := txn.Delete(key(usernameIndex, strings.ToLower(usr.Username))); err != nil {
		return err
	}
	if usr.Email != "" {
		return txn.Delete(key(emailIndex, strings.ToLower(usr.Email)))
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return user.User{}, errors.New("user ID is required")
	}
	err := repo.store.update(func(txn *badger.Txn) error {
		if ok, err := exists(txn, key(usersCol, usr.ID)); err != nil || ok {
			if err == nil {
				err = errors.Errorf("user %s already exists", usr.ID)
			}
			return err
		}
		if err := claimIndexes(txn, usr); err != nil {
			return err
		}
		return set(txn, key(usersCol, usr.ID), newUserRecord(usr))
	})
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	var usr user.User
	err := repo.store.view(func(txn *badger.Txn) error {
		rec, err := getUser(txn, id)
		usr = rec.toUser()
		return err
	})
	return usr, err
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return repo.getByIndex(usernameIndex, username)
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getByIndex(emailIndex, email)
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var recs []userRecord
	err := repo.store.view(func(txn *badger.Txn) error {
		var err error
		recs, err = scanAll(txn, prefix(usersCol), func(rec userRecord) bool { return matchUser(rec.User, filter) })
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.toUser())
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool { return lessUser(users[i], users[j], ordering) })
	return users, nil
}

func matchUser(usr user.User, filter user.QueryFilter) bool {
	if filter.Search != "" {
		s := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), s) &&
			!strings.Contains(strings.ToLower(usr.Username), s) &&
			!strings.Contains(strings.ToLower(usr.Email), s) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if strings.EqualFold(role, usr.Role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && *filter.IsActive != usr.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom.Time) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo.Time) {
		return false
	}
	return true
}

// lessUser compares a and b field by field, the ID breaking ties.
func lessUser(a, b user.User, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		c := compareUserField(a, b, ord.Field)
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return a.ID < b.ID
}

func compareUserField(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "is_active":
		return compareBool(a.IsActive, b.IsActive)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "last_login":
		return compareTimePtr(a.LastLogin, b.LastLogin)
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// compareTimePtr puts nil first.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.store.update(func(txn *badger.Txn) error {
		orig, err := getUser(txn, usr.ID)
		if err != nil {
			return err
		}
		if err := releaseIndexes(txn, orig.User); err != nil {
			return errors.Wrap(err, "releasing indexes")
		}
		if err := claimIndexes(txn, usr); err != nil {
			return err
		}
		return set(txn, key(usersCol, usr.ID), newUserRecord(usr))
	})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	err := repo.store.update(func(txn *badger.Txn) error {
		for _, id := range ids {
			rec, err := getUser(txn, id)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					continue
				}
				return err
			}
			if err := releaseIndexes(txn, rec.User); err != nil {
				return err
			}
			if err := txn.Delete(key(usersCol, id)); err != nil {
				return err
			}
		}
		if err := deletePrefix(txn, prefix(enrollmentsCol), fieldIn("student_id", ids...)); err != nil {
			return errors.Wrap(err, "deleting enrollments")
		}
		if err := deletePrefix(txn, prefix(viewsCol), fieldIn("student_id", ids...)); err != nil {
			return errors.Wrap(err, "deleting lecture views")
		}
		return errors.Wrap(deletePrefix(txn, prefix(qnasCol), fieldIn("author_id", ids...)), "deleting qnas")
	})
	return errors.Wrap(err, "deleting users")
}
