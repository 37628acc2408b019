package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/classhub/lms/core/progress"
)

// View is a lecture view with its completion status.
type View struct {
	progress.LectureView
	Status string `json:"status"`
}

func decodeJSON(r io.Reader, out interface{}) error {
	return json.NewDecoder(r).Decode(out)
}

func (c *Client) ClassViews(ctx context.Context, classID string) ([]View, error) {
	var views []View
	err := c.do(ctx, http.MethodGet, "/classes/"+url.PathEscape(classID)+"/views", nil, nil, &views)
	return views, err
}

func (c *Client) StudentViews(ctx context.Context, classID, studentID string) ([]View, error) {
	var views []View
	path := "/classes/" + url.PathEscape(classID) + "/students/" + url.PathEscape(studentID) + "/views"
	err := c.do(ctx, http.MethodGet, path, nil, nil, &views)
	return views, err
}

// UpdatePosition saves the playback position of the authenticated student.
// Progress is only credited through playback sessions.
func (c *Client) UpdatePosition(ctx context.Context, classID, lectureID string, lastPosition float64) (View, error) {
	var view View
	in := progress.UpdatePosition{
		ClassID:      classID,
		LectureID:    lectureID,
		LastPosition: &lastPosition,
	}
	err := c.do(ctx, http.MethodPost, "/views/progress", nil, in, &view)
	return view, err
}

// Playback sessions

func (c *Client) StartPlayback(ctx context.Context, classID, lectureID string, duration float64) (progress.StartResult, error) {
	var res progress.StartResult
	in := progress.StartPlayback{ClassID: classID, Duration: duration}
	err := c.do(ctx, http.MethodPost, "/lectures/"+url.PathEscape(lectureID)+"/playback", nil, in, &res)
	return res, err
}

func (c *Client) Heartbeat(ctx context.Context, sessionID string, currentTime float64, state string) (progress.HeartbeatResult, error) {
	var res progress.HeartbeatResult
	in := progress.Heartbeat{CurrentTime: &currentTime, State: state}
	err := c.do(ctx, http.MethodPost, "/playback/"+url.PathEscape(sessionID)+"/heartbeat", nil, in, &res)
	return res, err
}

// StopPlayback closes a playback session. currentTime may be nil.
func (c *Client) StopPlayback(ctx context.Context, sessionID string, currentTime *float64) (progress.HeartbeatResult, error) {
	var res progress.HeartbeatResult
	in := progress.StopPlayback{CurrentTime: currentTime}
	err := c.do(ctx, http.MethodDelete, "/playback/"+url.PathEscape(sessionID), nil, in, &res)
	return res, err
}
