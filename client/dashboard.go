package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/classhub/lms/core/dashboard"
)

func (c *Client) AdminDashboard(ctx context.Context) (dashboard.AdminDashboard, error) {
	var dash dashboard.AdminDashboard
	err := c.do(ctx, http.MethodGet, "/dashboard/admin", nil, nil, &dash)
	return dash, err
}

func (c *Client) ProfessorClasses(ctx context.Context) ([]dashboard.ClassSummary, error) {
	var classes []dashboard.ClassSummary
	err := c.do(ctx, http.MethodGet, "/dashboard/professor", nil, nil, &classes)
	return classes, err
}

func (c *Client) ProfessorClass(ctx context.Context, classID string) (dashboard.ClassDashboard, error) {
	var dash dashboard.ClassDashboard
	err := c.do(ctx, http.MethodGet, "/dashboard/professor/classes/"+url.PathEscape(classID), nil, nil, &dash)
	return dash, err
}

func (c *Client) LectureStats(ctx context.Context, lectureID string) (dashboard.LectureStats, error) {
	var stats dashboard.LectureStats
	err := c.do(ctx, http.MethodGet, "/lectures/"+url.PathEscape(lectureID)+"/stats", nil, nil, &stats)
	return stats, err
}

func (c *Client) Explore(ctx context.Context) ([]dashboard.ExploreClass, error) {
	var classes []dashboard.ExploreClass
	err := c.do(ctx, http.MethodGet, "/dashboard/student/explore", nil, nil, &classes)
	return classes, err
}

func (c *Client) StudentClasses(ctx context.Context) ([]dashboard.ClassSummary, error) {
	var classes []dashboard.ClassSummary
	err := c.do(ctx, http.MethodGet, "/dashboard/student/classes", nil, nil, &classes)
	return classes, err
}

func (c *Client) StudentClass(ctx context.Context, classID string) (dashboard.StudentClassDashboard, error) {
	var dash dashboard.StudentClassDashboard
	err := c.do(ctx, http.MethodGet, "/dashboard/student/classes/"+url.PathEscape(classID), nil, nil, &dash)
	return dash, err
}
