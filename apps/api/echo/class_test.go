package echoapi

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/user"
)

type classFixture struct {
	s                  *testServer
	admin, prof, other user.User
	student, outsider  user.User
	adminTk, profTk    string
	otherTk, studentTk string
	outsiderTk         string
	cls                class.Class
	lec                class.Lecture
}

func newClassFixture(t *testing.T, configure ...func(conf *core.Config)) *classFixture {
	s := setup(t, configure...)
	f := &classFixture{
		s:        s,
		admin:    s.createUser(t, "Admin", "admin", user.RoleAdmin),
		prof:     s.createUser(t, "Prof", "prof", user.RoleProf),
		other:    s.createUser(t, "Other Prof", "otherprof", user.RoleProf),
		student:  s.createUser(t, "Student", "student", user.RoleStudent),
		outsider: s.createUser(t, "Outsider", "outsider", user.RoleStudent),
	}
	f.adminTk = s.getToken(t, f.admin)
	f.profTk = s.getToken(t, f.prof)
	f.otherTk = s.getToken(t, f.other)
	f.studentTk = s.getToken(t, f.student)
	f.outsiderTk = s.getToken(t, f.outsider)

	f.cls = s.app.CreateClass(t, "Algebra", f.prof.ID)
	f.lec = s.app.CreateLecture(t, f.cls.ID, "Groups")
	s.app.Enroll(t, f.cls.ID, f.student.ID)
	return f
}

func Test_classApi_classes(t *testing.T) {
	f := newClassFixture(t)
	s := f.s
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	s.run(t, []httpTest{
		{name: "list requires auth", path: "/v1/classes", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "list", path: "/v1/classes", token: f.outsiderTk, wantCode: http.StatusOK, wantData: marshalList(t, f.cls)},
		{name: "search", path: "/v1/classes?search=zzz", token: f.outsiderTk, wantCode: http.StatusOK, wantData: marshalList(t)},
		{name: "retrieve", path: "/v1/classes/" + f.cls.ID, token: f.outsiderTk, wantCode: http.StatusOK, wantData: marshalObj(t, f.cls)},
		{name: "retrieve (unknown)", path: "/v1/classes/nope", token: f.outsiderTk, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "class not found"})},
		{
			name: "student cannot create", method: http.MethodPost, path: "/v1/classes", token: f.studentTk,
			body: marshalObj(t, class.NewClass{Title: "Hack"}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "admin must name the professor", method: http.MethodPost, path: "/v1/classes", token: f.adminTk,
			body: marshalObj(t, class.NewClass{Title: "Orphan"}), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"prof_id": "this field is required"}),
		},
		{
			name: "admin names a student", method: http.MethodPost, path: "/v1/classes", token: f.adminTk,
			body: marshalObj(t, class.NewClass{Title: "Orphan", ProfID: f.student.ID}), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"prof_id": "this user is not a professor"}),
		},
		{
			name: "other prof cannot update", method: http.MethodPatch, path: "/v1/classes/" + f.cls.ID, token: f.otherTk,
			body: []byte(`{"title": "Mine now"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "owner cannot hand over", method: http.MethodPatch, path: "/v1/classes/" + f.cls.ID, token: f.profTk,
			body: marshalObj(t, map[string]string{"prof_id": f.other.ID}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "enrollments (owner)", path: "/v1/classes/" + f.cls.ID + "/enrollments", token: f.profTk, wantCode: http.StatusOK},
		{name: "enrollments (other prof)", path: "/v1/classes/" + f.cls.ID + "/enrollments", token: f.otherTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "enrollments (student)", path: "/v1/classes/" + f.cls.ID + "/enrollments", token: f.studentTk, wantCode: http.StatusForbidden, wantData: forbidden},
	})

	t.Run("prof creates their own class", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/classes", f.profTk, marshalObj(t, class.NewClass{Title: " Topology ", ProfID: f.other.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cls class.Class
		unmarshal(t, rec, &cls)
		assert.Equal(t, "Topology", cls.Title)
		assert.Equal(t, f.prof.ID, cls.ProfID)
	})

	t.Run("admin hands over", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/v1/classes/"+f.cls.ID, f.adminTk, marshalObj(t, map[string]string{"prof_id": f.other.ID}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var cls class.Class
		unmarshal(t, rec, &cls)
		assert.Equal(t, f.other.ID, cls.ProfID)
		assert.Equal(t, "Algebra", cls.Title)
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/v1/classes/"+f.cls.ID, f.profTk)
		assert.Equal(t, http.StatusForbidden, rec.Code) // handed over

		rec = s.do(http.MethodDelete, "/v1/classes/"+f.cls.ID, f.otherTk)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := s.app.ClassSvc.GetLecture(context.Background(), f.lec.ID)
		assert.Equal(t, class.ErrLectureNotFound, err)
	})
}

func Test_classApi_content(t *testing.T) {
	f := newClassFixture(t)
	s := f.s
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	base := "/v1/classes/" + f.cls.ID

	s.run(t, []httpTest{
		{name: "lectures (owner)", path: base + "/lectures", token: f.profTk, wantCode: http.StatusOK, wantData: marshalList(t, f.lec)},
		{name: "lectures (admin)", path: base + "/lectures", token: f.adminTk, wantCode: http.StatusOK, wantData: marshalList(t, f.lec)},
		{name: "lectures (enrolled)", path: base + "/lectures", token: f.studentTk, wantCode: http.StatusOK, wantData: marshalList(t, f.lec)},
		{name: "lectures (not enrolled)", path: base + "/lectures", token: f.outsiderTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "lectures (other prof)", path: base + "/lectures", token: f.otherTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "lecture (enrolled)", path: "/v1/lectures/" + f.lec.ID, token: f.studentTk, wantCode: http.StatusOK, wantData: marshalObj(t, f.lec)},
		{name: "lecture (not enrolled)", path: "/v1/lectures/" + f.lec.ID, token: f.outsiderTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "resources (enrolled)", path: base + "/resources", token: f.studentTk, wantCode: http.StatusOK, wantData: marshalList(t)},
		{name: "qnas (enrolled)", path: base + "/qnas", token: f.studentTk, wantCode: http.StatusOK, wantData: marshalList(t)},
		{
			name: "lecture create (other prof)", method: http.MethodPost, path: "/v1/lectures", token: f.otherTk,
			body:     marshalObj(t, class.NewLecture{ClassID: f.cls.ID, Title: "Rings", YoutubeLink: "dQw4w9WgXcQ"}),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "lecture create (bad link)", method: http.MethodPost, path: "/v1/lectures", token: f.profTk,
			body:     marshalObj(t, class.NewLecture{ClassID: f.cls.ID, Title: "Rings", YoutubeLink: "https://vimeo.com/1"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "lecture update (student)", method: http.MethodPatch, path: "/v1/lectures/" + f.lec.ID, token: f.studentTk,
			body: []byte(`{"title": "Pwned"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
	})

	t.Run("lecture lifecycle", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/lectures", f.profTk, marshalObj(t, class.NewLecture{
			ClassID: f.cls.ID, Title: "Rings", YoutubeLink: "https://www.youtube.com/watch?v=abcdefghijk",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var lec class.Lecture
		unmarshal(t, rec, &lec)
		assert.Equal(t, "abcdefghijk", lec.VideoID)

		rec = s.do(http.MethodPatch, "/v1/lectures/"+lec.ID, f.adminTk, []byte(`{"title": "Rings & Fields"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &lec)
		assert.Equal(t, "Rings & Fields", lec.Title)
		assert.Equal(t, "abcdefghijk", lec.VideoID)

		rec = s.do(http.MethodDelete, "/v1/lectures/"+lec.ID, f.profTk)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		rec = s.do(http.MethodGet, "/v1/lectures/"+lec.ID, f.profTk)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("qnas", func(t *testing.T) {
		body := marshalObj(t, class.NewQnA{ClassID: f.cls.ID, Title: "Question", Content: "Why?"})

		rec := s.do(http.MethodPost, "/v1/qnas", f.outsiderTk, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodPost, "/v1/qnas", f.studentTk, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var qna class.QnA
		unmarshal(t, rec, &qna)
		assert.Equal(t, f.student.ID, qna.AuthorID)

		rec = s.do(http.MethodPost, "/v1/qnas", f.profTk, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var answer class.QnA
		unmarshal(t, rec, &answer)

		// students only delete their own posts
		rec = s.do(http.MethodDelete, "/v1/qnas/"+answer.ID, f.studentTk)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = s.do(http.MethodDelete, "/v1/qnas/"+qna.ID, f.studentTk)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = s.do(http.MethodDelete, "/v1/qnas/"+answer.ID, f.otherTk)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = s.do(http.MethodDelete, "/v1/qnas/"+answer.ID, f.adminTk)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile(formFileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_classApi_resources(t *testing.T) {
	f := newClassFixture(t)
	s := f.s

	t.Run("metadata only", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/resources", f.profTk, marshalObj(t, class.NewResource{
			ClassID: f.cls.ID, Title: "Syllabus", Filename: "syllabus.pdf",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res class.Resource
		unmarshal(t, rec, &res)
		assert.False(t, res.Stored)

		rec = s.do(http.MethodGet, "/v1/resources/"+res.ID+"/download", f.studentTk)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "resource file not found"})}, rec)
	})

	t.Run("no file", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/resources", f.profTk, marshalObj(t, class.NewResource{ClassID: f.cls.ID, Title: "Empty"}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"filename": "a filename or a file is required"}),
		}, rec)
	})

	t.Run("upload and download", func(t *testing.T) {
		content := []byte("chapter 1: sets")
		fields := map[string]string{"class_id": f.cls.ID, "lecture_id": f.lec.ID, "title": "Notes"}

		req, rec := newMultipartRequest(t, "/v1/resources", f.otherTk, fields, "notes.txt", content)
		s.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newMultipartRequest(t, "/v1/resources", f.profTk, fields, "notes.txt", content)
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res class.Resource
		unmarshal(t, rec, &res)
		assert.True(t, res.Stored)
		assert.Equal(t, "notes.txt", res.Filename)
		assert.Equal(t, int64(len(content)), res.Size)
		assert.Equal(t, f.lec.ID, res.LectureID)

		rec = s.do(http.MethodGet, "/v1/resources/"+res.ID+"/download", f.outsiderTk)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodGet, "/v1/resources/"+res.ID+"/download", f.studentTk)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, content, rec.Body.Bytes())
		assert.Equal(t, `attachment; filename="notes.txt"`, rec.Header().Get("Content-Disposition"))

		rec = s.do(http.MethodPatch, "/v1/resources/"+res.ID, f.profTk, []byte(`{"title": "Lecture notes"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &res)
		assert.Equal(t, "Lecture notes", res.Title)

		rec = s.do(http.MethodDelete, "/v1/resources/"+res.ID, f.profTk)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := s.app.Files.Open(context.Background(), res.FileKey())
		assert.Error(t, err)
	})
}

func Test_classApi_enrollments(t *testing.T) {
	f := newClassFixture(t)
	s := f.s
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	s.run(t, []httpTest{
		{
			name: "prof cannot enroll", method: http.MethodPost, path: "/v1/enrollments", token: f.profTk,
			body: marshalObj(t, class.NewEnrollment{ClassID: f.cls.ID, StudentID: f.outsider.ID}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "student enrolls someone else", method: http.MethodPost, path: "/v1/enrollments", token: f.studentTk,
			body: marshalObj(t, class.NewEnrollment{ClassID: f.cls.ID, StudentID: f.outsider.ID}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "already enrolled", method: http.MethodPost, path: "/v1/enrollments", token: f.studentTk,
			body: marshalObj(t, class.NewEnrollment{ClassID: f.cls.ID}), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "already enrolled in this class"}),
		},
		{
			name: "admin enrolls a prof", method: http.MethodPost, path: "/v1/enrollments", token: f.adminTk,
			body: marshalObj(t, class.NewEnrollment{ClassID: f.cls.ID, StudentID: f.other.ID}), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"student_id": "this user is not a student"}),
		},
		{name: "someone else's enrollments", path: "/v1/students/" + f.student.ID + "/enrollments", token: f.outsiderTk, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "no enrollments", path: "/v1/students/" + f.outsider.ID + "/enrollments", token: f.outsiderTk, wantCode: http.StatusOK, wantData: marshalList(t)},
	})

	t.Run("self enrollment", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/enrollments", f.outsiderTk, marshalObj(t, class.NewEnrollment{ClassID: f.cls.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var enr class.Enrollment
		unmarshal(t, rec, &enr)
		assert.Equal(t, f.outsider.ID, enr.StudentID)

		rec = s.do(http.MethodGet, "/v1/students/"+f.outsider.ID+"/enrollments", f.adminTk)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalList(t, enr)}, rec)

		rec = s.do(http.MethodGet, "/v1/classes/"+f.cls.ID+"/lectures", f.outsiderTk)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
