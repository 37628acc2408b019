package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/lms/core/user"
	"github.com/classhub/lms/tests"
)

func Test_userApi_login(t *testing.T) {
	s := setup(t)
	usr := s.createUser(t, "John Doe", "jdoe", user.RoleStudent)
	deactivated := testutil.CreateUser(t, s.app.UserRepo, "Lazy", "lazy", "", testutil.Password, user.RoleStudent, false)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	invalid := marshalObj(t, httpErr{Error: "invalid credentials"})

	s.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/auth/login", body: body("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown user", method: http.MethodPost, path: "/v1/auth/login", body: body("nobody", testutil.Password), wantCode: http.StatusBadRequest, wantData: invalid},
		{name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: body("jdoe", "nope"), wantCode: http.StatusBadRequest, wantData: invalid},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/login", body: body(deactivated.Username, testutil.Password),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/auth/login", "", body(" JDOE ", testutil.Password))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		require.NotNil(t, resp.User)
		assert.Equal(t, usr.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLogin)

		claims := new(Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(s.app.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, user.RoleStudent, claims.Role)
		assert.True(t, claims.IsStudent)
		assert.False(t, claims.IsAdmin)
		assert.Equal(t, claims.IssuedAt, claims.OrigIssuedAt)
	})
}

func Test_userApi_register(t *testing.T) {
	s := setup(t)
	s.createUser(t, "Taken", "taken", user.RoleStudent)

	body := func(uname, role string) []byte {
		return marshalObj(t, user.NewUser{
			Name:            "New Comer",
			Username:        uname,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	s.run(t, []httpTest{
		{
			name: "admin cannot sign up", method: http.MethodPost, path: "/v1/auth/register", body: body("newbie", user.RoleAdmin),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"role": "this role cannot be registered"}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/auth/register", body: body("TAKEN", user.RoleStudent),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/auth/register", "", body("NewBie", user.RoleProf))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "newbie", usr.Username)
		assert.Equal(t, user.RoleProf, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	s := setup(t)
	usr := s.createUser(t, "John Doe", "jdoe", user.RoleProf)

	s.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "success", method: http.MethodPost, path: "/v1/auth/token-refresh", token: s.getToken(t, usr), wantCode: http.StatusOK},
	})

	t.Run("refresh expired", func(t *testing.T) {
		origIat := time.Now().Add(-s.app.Conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()
		token, err := s.auth.generateToken(s.auth.userClaims(usr, origIat))
		require.NoError(t, err)

		rec := s.do(http.MethodPost, "/v1/auth/token-refresh", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"})}, rec)
	})

	t.Run("deleted user", func(t *testing.T) {
		gone := s.createUser(t, "Gone", "gone", user.RoleStudent)
		token := s.getToken(t, gone)
		require.NoError(t, s.app.UserSvc.Delete(context.Background(), gone.ID))

		rec := s.do(http.MethodPost, "/v1/auth/token-refresh", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_query(t *testing.T) {
	s := setup(t)

	now := time.Now()
	admin := testutil.CreateUser(t, s.app.UserRepo, "Admin", "admin", "admin@test.cd", testutil.Password, user.RoleAdmin, true, now.Add(-3*time.Hour))
	prof := testutil.CreateUser(t, s.app.UserRepo, "Prof Xavier", "xavier", "xavier@test.cd", "", user.RoleProf, true, now.Add(-2*time.Hour))
	student := testutil.CreateUser(t, s.app.UserRepo, "Jean Grey", "jean", "jean@test.cd", "", user.RoleStudent, true, now.Add(-1*time.Hour))
	naughty := testutil.CreateUser(t, s.app.UserRepo, "Logan", "wolverine", "logan@test.cd", "", user.RoleStudent, false, now)

	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }
	adminToken := s.getToken(t, admin)

	s.run(t, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: s.getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all", path: "/v1/users", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, naughty, student, prof, admin)},
		{name: "search", path: path(url.Values{"search": {"JEAN"}}), token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, student)},
		{name: "search (unknown)", path: path(url.Values{"search": {"lol"}}), token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t)},
		{
			name: "roles", path: path(url.Values{"role": {user.RoleStudent, user.RoleProf}}), token: adminToken,
			wantCode: http.StatusOK, wantData: marshalList(t, naughty, student, prof),
		},
		{name: "is_active=false", path: path(url.Values{"is_active": {"false"}}), token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, naughty)},
		{
			name: "created range", path: path(url.Values{
				"created_from": {now.Add(-150 * time.Minute).Format(time.RFC3339)},
				"created_to":   {now.Add(-30 * time.Minute).Format(time.RFC3339)},
			}), token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, student, prof),
		},
		{
			name: "ordering", path: path(url.Values{"ordering": {"username"}}), token: adminToken,
			wantCode: http.StatusOK, wantData: marshalList(t, admin, student, naughty, prof),
		},
		{name: "roles list", path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)},
	})
}

func Test_userApi_create(t *testing.T) {
	s := setup(t)
	admin := s.createUser(t, "Admin", "admin", user.RoleAdmin)
	token := s.getToken(t, admin)

	body := func(uname, role string) []byte {
		return marshalObj(t, user.NewUser{
			Name:            "Created",
			Username:        uname,
			Email:           uname + "@test.cd",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	s.run(t, []httpTest{
		{
			name: "invalid role", method: http.MethodPost, path: "/v1/users", token: token, body: body("someone", "king"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"role": "invalid role"}),
		},
		{name: "admin", method: http.MethodPost, path: "/v1/users", token: token, body: body("admin2", user.RoleAdmin), wantCode: http.StatusCreated},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/users", token: token, body: marshalObj(t, user.NewUser{
				Name: "Dup", Username: "dup", Email: "admin2@test.cd", Password: testutil.Password, PasswordConfirm: testutil.Password, Role: user.RoleStudent,
			}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	})
}

func Test_userApi_detail(t *testing.T) {
	s := setup(t)
	admin := s.createUser(t, "Admin", "admin", user.RoleAdmin)
	prof := s.createUser(t, "Prof", "prof", user.RoleProf)
	student := s.createUser(t, "Student", "student", user.RoleStudent)
	other := s.createUser(t, "Other", "other", user.RoleStudent)

	adminToken := s.getToken(t, admin)
	studentToken := s.getToken(t, student)
	notFound := marshalObj(t, httpErr{Error: "not found"})
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	bTrue := true

	s.run(t, []httpTest{
		{name: "self", path: "/v1/users/" + student.ID, token: studentToken, wantCode: http.StatusOK, wantData: marshalObj(t, student)},
		{name: "someone else", path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin", path: "/v1/users/" + prof.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, prof)},
		{name: "admin (unknown)", path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "activate self", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken,
			body: marshalObj(t, user.UpdateUser{IsActive: &bTrue}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "delete as non admin", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "admin deletes self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "admin deletes self among others", method: http.MethodDelete, path: "/v1/users?id=" + other.ID + "&id=" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "unknown role", method: http.MethodPatch, path: "/v1/users/" + prof.ID + "/role", token: adminToken,
			body: marshalObj(t, user.UpdateRole{Role: "king"}), wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"role": "invalid role"}),
		},
	})

	t.Run("update self", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/v1/users/"+student.ID, studentToken, marshalObj(t, user.UpdateUser{Name: "Renamed"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, student.Email, got.Email)
	})

	t.Run("update role", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/v1/users/"+other.ID+"/role", adminToken, marshalObj(t, user.UpdateRole{Role: " PROF "}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := s.app.UserSvc.GetByID(context.Background(), other.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleProf, got.Role)
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/v1/users/"+prof.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := s.app.UserSvc.GetByID(context.Background(), prof.ID)
		assert.Equal(t, user.ErrNotFound, err)

		rec = s.do(http.MethodDelete, "/v1/users?id="+other.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})

	t.Run("deleted user token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/users/"+other.ID, s.getToken(t, other))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	s := setup(t)
	s.createUser(t, "John Doe", "jdoe", user.RoleStudent)

	success := marshalObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	s.run(t, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/auth/password-reset", body: marshalObj(t, PasswordResetRequest{Email: "lol"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/password-reset", body: marshalObj(t, PasswordResetRequest{Email: "who@test.cd"}),
			wantCode: http.StatusOK, wantData: success,
		},
		{
			name: "known email", method: http.MethodPost, path: "/v1/auth/password-reset", body: marshalObj(t, PasswordResetRequest{Email: "JDOE@test.cd"}),
			wantCode: http.StatusOK, wantData: success,
		},
		{
			name: "bad token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body: marshalObj(t, user.ResetUserPassword{
				Token: "nope", UID: "nope", Password: "N3w-Pa$$word", PasswordConfirm: "N3w-Pa$$word",
			}),
			wantCode: http.StatusBadRequest,
		},
	})

	s.app.Mail.Wait()
	msgs := s.app.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "jdoe@test.cd", msgs[0].To[0].Address)
}
