package echoapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/progress"
	"github.com/classhub/lms/core/user"
)

func Test_rateLimitMiddleware(t *testing.T) {
	s := setup(t, func(conf *core.Config) {
		conf.Server.LoginRatePerMinute = 1
		conf.Server.LoginBurst = 2
	})
	body := marshalObj(t, LoginRequest{Username: "nobody", Password: "nope"})

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/v1/auth/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i)
	}
	rec := s.do(http.MethodPost, "/v1/auth/login", "", body)
	checkCodeAndData(t, httpTest{wantCode: http.StatusTooManyRequests, wantData: marshalObj(t, httpErr{Error: "too many requests"})}, rec)

	// other endpoints are not limited
	rec = s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_ipRateLimiter(t *testing.T) {
	l := newIPRateLimiter(60, 1) // one per second
	now := time.Now()

	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now), "buckets are per IP")
	assert.True(t, l.allow("10.0.0.1", now.Add(time.Second)))

	// idle visitors are dropped
	l.allow("10.0.0.3", now.Add(time.Hour))
	l.mu.Lock()
	assert.Len(t, l.visitors, 1)
	l.mu.Unlock()
}

func Test_roleMiddleware(t *testing.T) {
	s := setup(t)
	student := s.createUser(t, "Student", "student", "student")

	s.run(t, []httpTest{
		{name: "bad token", path: "/v1/users", token: "not.a.token", wantCode: http.StatusUnauthorized},
		{name: "wrong role", path: "/v1/dashboard/admin", token: s.getToken(t, student), wantCode: http.StatusForbidden},
		{name: "right role", path: "/v1/dashboard/student/classes", token: s.getToken(t, student), wantCode: http.StatusOK, wantData: marshalList(t)},
	})
}

func Test_metrics(t *testing.T) {
	s := setup(t)

	rec := s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to ClassHub API!", rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lms_http_requests_total"), "request counter exported")
	assert.True(t, strings.Contains(body, `route="/"`), "routes are labelled")
}

type captureLogger struct {
	core.Logger

	mu       sync.Mutex
	statuses []interface{}
	errors   int
}

func (l *captureLogger) Info(_ string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(args) > 0 {
		if fields, ok := args[0].(map[string]interface{}); ok {
			l.statuses = append(l.statuses, fields["status"])
		}
	}
}

func (l *captureLogger) Error(string, ...interface{}) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func Test_requestLogger(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"ok", nil, http.StatusOK},
		{"validation error", core.NewValidationError(nil, core.FieldError{Field: "title", Error: "required"}), http.StatusBadRequest},
		{"invalid credentials", errors.Wrap(user.ErrInvalidCredentials, "logging in"), http.StatusBadRequest},
		{"not enrolled", errors.Wrap(progress.ErrNotEnrolled, "saving position"), http.StatusForbidden},
		{"not found", errors.Wrap(progress.ErrNotFound, "finding view"), http.StatusNotFound},
		{"http error", errHttpForbidden, http.StatusForbidden},
		{"server error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &captureLogger{Logger: core.NewNopLogger()}
			e := echo.New()
			e.HTTPErrorHandler = newAppHTTPErrorHandler(logger, core.NewTranslator(), func() {})
			e.Use(requestLogger(logger), metricsMiddleware())
			e.GET("/", func(ctx echo.Context) error {
				if tt.err != nil {
					return tt.err
				}
				return ctx.String(http.StatusOK, "ok")
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			require.Len(t, logger.statuses, 1)
			assert.Equal(t, tt.wantCode, logger.statuses[0])
			if tt.wantCode == http.StatusInternalServerError {
				assert.Equal(t, 1, logger.errors, "errors are handled once")
			}
		})
	}
}

func Test_metricsStatusCodes(t *testing.T) {
	f := newClassFixture(t)
	s := f.s

	body := marshalObj(t, map[string]string{"class_id": f.cls.ID, "lecture_id": f.lec.ID})
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/views/progress", f.studentTk, body).Code)
	pos := 1.0
	body = marshalObj(t, progress.UpdatePosition{ClassID: f.cls.ID, LectureID: f.lec.ID, LastPosition: &pos})
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/v1/views/progress", f.outsiderTk, body).Code)
	login := marshalObj(t, LoginRequest{Username: "student", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/auth/login", "", login).Code)

	rec := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := rec.Body.String()
	for _, line := range []string{
		`lms_http_requests_total{code="400",method="POST",route="/v1/views/progress"}`,
		`lms_http_requests_total{code="403",method="POST",route="/v1/views/progress"}`,
		`lms_http_requests_total{code="400",method="POST",route="/v1/auth/login"}`,
	} {
		assert.True(t, strings.Contains(metrics, line), line)
	}
	assert.False(t, strings.Contains(metrics, `lms_http_requests_total{code="500",method="POST",route="/v1/views/progress"}`))
	assert.False(t, strings.Contains(metrics, `lms_http_requests_total{code="500",method="POST",route="/v1/auth/login"}`))
}
