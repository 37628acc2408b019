package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
	"github.com/classhub/lms/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testServer struct {
	*Server
	app *testutil.App
}

// setup returns a Server wired on a fresh in-memory store. The login rate limit is off
// unless configure turns it on.
func setup(t *testing.T, configure ...func(conf *core.Config)) *testServer {
	t.Helper()

	app := testutil.NewApp(t)
	app.Conf.Server.LoginRatePerMinute = 0
	for _, fn := range configure {
		fn(app.Conf)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)

	sessions := progress.NewSessionManager(app.Conf, app.ProgressSvc, core.NewNopLogger())
	srv := NewServer(Options{
		Conf:           app.Conf,
		Logger:         core.NewNopLogger(),
		Validate:       validate,
		Translator:     translator,
		UserSvc:        app.UserSvc,
		ClassSvc:       app.ClassSvc,
		ProgressSvc:    app.ProgressSvc,
		Sessions:       sessions,
		DashboardSvc:   app.DashboardSvc,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = sessions.Close(context.Background()) })

	return &testServer{Server: srv, app: app}
}

func (s *testServer) createUser(t *testing.T, name, uname, role string) user.User {
	t.Helper()
	return testutil.CreateUser(t, s.app.UserRepo, name, uname, uname+"@test.cd", testutil.Password, role, true)
}

func (s *testServer) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := s.auth.generateToken(s.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves a request and returns the recorder.
func (s *testServer) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	s.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (s *testServer) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := s.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshalList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
