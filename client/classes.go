package client

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/classhub/lms/core/class"
)

// Classes lists the classes matching filter, all of them when filter is zero.
func (c *Client) Classes(ctx context.Context, filter class.ClassFilter) ([]class.Class, error) {
	q := make(url.Values)
	if filter.ProfID != "" {
		q.Set("prof_id", filter.ProfID)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	var classes []class.Class
	err := c.do(ctx, http.MethodGet, "/classes", q, nil, &classes)
	return classes, err
}

func (c *Client) Class(ctx context.Context, id string) (class.Class, error) {
	var cls class.Class
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(id), nil, nil, &cls)
	return cls, err
}

func (c *Client) CreateClass(ctx context.Context, nc class.NewClass) (class.Class, error) {
	var cls class.Class
	err := c.do(ctx, http.MethodPost, "/classes", nil, nc, &cls)
	return cls, err
}

func (c *Client) UpdateClass(ctx context.Context, id string, uc class.UpdateClass) (class.Class, error) {
	var cls class.Class
	err := c.do(ctx, http.MethodPatch, "/classes/"+url.PathEscape(id), nil, uc, &cls)
	return cls, err
}

func (c *Client) DeleteClass(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/classes/"+url.PathEscape(id), nil, nil, nil)
}

// Lectures

func (c *Client) ClassLectures(ctx context.Context, classID string) ([]class.Lecture, error) {
	var lectures []class.Lecture
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID)+"/lectures", nil, nil, &lectures)
	return lectures, err
}

func (c *Client) Lecture(ctx context.Context, id string) (class.Lecture, error) {
	var lec class.Lecture
	err := c.do(ctx, http.MethodGet, "/lectures/"+url.PathEscape(id), nil, nil, &lec)
	return lec, err
}

func (c *Client) CreateLecture(ctx context.Context, nl class.NewLecture) (class.Lecture, error) {
	var lec class.Lecture
	err := c.do(ctx, http.MethodPost, "/lectures", nil, nl, &lec)
	return lec, err
}

func (c *Client) UpdateLecture(ctx context.Context, id string, ul class.UpdateLecture) (class.Lecture, error) {
	var lec class.Lecture
	err := c.do(ctx, http.MethodPatch, "/lectures/"+url.PathEscape(id), nil, ul, &lec)
	return lec, err
}

func (c *Client) DeleteLecture(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/lectures/"+url.PathEscape(id), nil, nil, nil)
}

// Resources

func (c *Client) ClassResources(ctx context.Context, classID string) ([]class.Resource, error) {
	var resources []class.Resource
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID)+"/resources", nil, nil, &resources)
	return resources, err
}

func (c *Client) Resource(ctx context.Context, id string) (class.Resource, error) {
	var res class.Resource
	err := c.do(ctx, http.MethodGet, "/resources/"+url.PathEscape(id), nil, nil, &res)
	return res, err
}

// CreateResource creates a resource with metadata only.
func (c *Client) CreateResource(ctx context.Context, nr class.NewResource) (class.Resource, error) {
	var res class.Resource
	err := c.do(ctx, http.MethodPost, "/resources", nil, nr, &res)
	return res, err
}

// UploadResource creates a resource and streams body as its file.
func (c *Client) UploadResource(ctx context.Context, nr class.NewResource, filename string, body io.Reader) (class.Resource, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			fields := map[string]string{
				"class_id":    nr.ClassID,
				"lecture_id":  nr.LectureID,
				"title":       nr.Title,
				"description": nr.Description,
				"filename":    nr.Filename,
			}
			for k, v := range fields {
				if v == "" {
					continue
				}
				if err := mw.WriteField(k, v); err != nil {
					return err
				}
			}
			part, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err = io.Copy(part, body); err != nil {
				return err
			}
			return mw.Close()
		}()
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/resources", nil, pr, mw.FormDataContentType())
	if err != nil {
		_ = pr.Close()
		return class.Resource{}, err
	}
	resp, err := c.send(req)
	if err != nil {
		return class.Resource{}, err
	}
	defer resp.Body.Close()

	var res class.Resource
	return res, errors.Wrap(decodeJSON(resp.Body, &res), "decoding upload response")
}

// DownloadResource returns the file body of a resource. The caller closes it.
func (c *Client) DownloadResource(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/resources/"+url.PathEscape(id)+"/download", nil, nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) UpdateResource(ctx context.Context, id string, ur class.UpdateResource) (class.Resource, error) {
	var res class.Resource
	err := c.do(ctx, http.MethodPatch, "/resources/"+url.PathEscape(id), nil, ur, &res)
	return res, err
}

func (c *Client) DeleteResource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/resources/"+url.PathEscape(id), nil, nil, nil)
}

// QnAs

func (c *Client) ClassQnAs(ctx context.Context, classID string) ([]class.QnA, error) {
	var qnas []class.QnA
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID)+"/qnas", nil, nil, &qnas)
	return qnas, err
}

// CreateQnA posts a question as the authenticated user.
func (c *Client) CreateQnA(ctx context.Context, nq class.NewQnA) (class.QnA, error) {
	var qna class.QnA
	err := c.do(ctx, http.MethodPost, "/qnas", nil, nq, &qna)
	return qna, err
}

func (c *Client) DeleteQnA(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/qnas/"+url.PathEscape(id), nil, nil, nil)
}

// Enrollments

func (c *Client) ClassEnrollments(ctx context.Context, classID string) ([]class.Enrollment, error) {
	var enrollments []class.Enrollment
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID)+"/enrollments", nil, nil, &enrollments)
	return enrollments, err
}

func (c *Client) StudentEnrollments(ctx context.Context, studentID string) ([]class.Enrollment, error) {
	var enrollments []class.Enrollment
	err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(studentID)+"/enrollments", nil, nil, &enrollments)
	return enrollments, err
}

// Enroll enrolls a student in a class. Students may leave StudentID empty.
func (c *Client) Enroll(ctx context.Context, classID, studentID string) (class.Enrollment, error) {
	var enr class.Enrollment
	err := c.do(ctx, http.MethodPost, "/enrollments", nil, class.NewEnrollment{ClassID: classID, StudentID: studentID}, &enr)
	return enr, err
}
