package sqlxrepos

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

func TestBuildUserQuery(t *testing.T) {
	active := true
	from := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    user.QueryFilter
		ordering  []core.DBOrdering
		wantWhere string
		wantOrder string
		wantArgs  int
	}{
		{
			name:      "no filter",
			wantOrder: " ORDER BY created_at DESC, id ASC",
		},
		{
			name:      "search",
			filter:    user.QueryFilter{Search: "jo"},
			wantWhere: " WHERE (name ILIKE $1 OR username ILIKE $1 OR email ILIKE $1)",
			wantOrder: " ORDER BY created_at DESC, id ASC",
			wantArgs:  1,
		},
		{
			name: "all filters",
			filter: user.QueryFilter{
				Search:      "jo",
				Roles:       []string{user.RoleProf},
				IsActive:    &active,
				CreatedFrom: core.QueryTime{Time: from},
				CreatedTo:   core.QueryTime{Time: from.AddDate(0, 1, 0)},
			},
			wantWhere: " WHERE (name ILIKE $1 OR username ILIKE $1 OR email ILIKE $1) AND role = ANY($2)" +
				" AND is_active = $3 AND created_at >= $4 AND created_at <= $5",
			wantOrder: " ORDER BY created_at DESC, id ASC",
			wantArgs:  5,
		},
		{
			name:      "ordering",
			ordering:  core.ParseOrdering("name,-username"),
			wantOrder: " ORDER BY name ASC, username DESC, id ASC",
		},
		{
			name:      "unknown ordering fields dropped",
			ordering:  core.ParseOrdering("password_hash;DROP TABLE users,role"),
			wantOrder: " ORDER BY role ASC, id ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := buildUserQuery(tt.filter, tt.ordering)
			assert.Equal(t, "SELECT "+userColumns+" FROM users"+tt.wantWhere+tt.wantOrder, q)
			assert.Len(t, args, tt.wantArgs)
		})
	}

	_, args := buildUserQuery(user.QueryFilter{Search: "jo", Roles: []string{user.RoleProf}}, nil)
	assert.Equal(t, "%jo%", args[0])
	assert.Equal(t, pq.Array([]string{user.RoleProf}), args[1])
}

func TestTrapErrors(t *testing.T) {
	nf := core.NewNotFoundError("thing")
	assert.Equal(t, nf, trapNoRowsErr(errors.Wrap(sql.ErrNoRows, "scanning"), nf, "getting thing"))
	assert.EqualError(t, trapNoRowsErr(errors.New("boom"), nf, "getting thing"), "getting thing: boom")

	usernameErr := &pq.Error{Code: uniqueViolation, Constraint: "users_username_key"}
	emailErr := &pq.Error{Code: uniqueViolation, Constraint: "users_email_key"}
	otherErr := &pq.Error{Code: "23503", Constraint: "qnas_author_id_fkey"}

	assert.Equal(t, "users_username_key", uniqueConstraint(errors.Wrap(usernameErr, "inserting")))
	assert.Empty(t, uniqueConstraint(otherErr))
	assert.Empty(t, uniqueConstraint(errors.New("boom")))

	assert.Equal(t, user.ErrUsernameExists, trapUniqueErr(usernameErr, "inserting user"))
	assert.Equal(t, user.ErrEmailExists, trapUniqueErr(emailErr, "inserting user"))
	assert.Equal(t, otherErr, errors.Cause(trapUniqueErr(otherErr, "inserting user")))
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []int{}, nonNil[int](nil))
	assert.Equal(t, []int{1}, nonNil([]int{1}))
}
