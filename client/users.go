package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/classhub/lms/core/user"
)

type (
	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// UserQuery filters Users. Zero fields are ignored.
	UserQuery struct {
		Search   string
		Roles    []string
		IsActive *bool
		Ordering string // e.g. "-created_at,name"
	}
)

func (q UserQuery) values() url.Values {
	v := make(url.Values)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for _, r := range q.Roles {
		v.Add("role", r)
	}
	if q.IsActive != nil {
		v.Set("is_active", strconv.FormatBool(*q.IsActive))
	}
	if q.Ordering != "" {
		v.Set("ordering", q.Ordering)
	}
	return v
}

// Login authenticates and keeps the returned token for the next requests.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, in, &resp); err != nil {
		return LoginResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

// Register signs up a professor or a student.
func (c *Client) Register(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, nu, &usr)
	return usr, err
}

// RefreshToken swaps the current token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/token-refresh", nil, nil, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) (SuccessResponse, error) {
	var resp SuccessResponse
	err := c.do(ctx, http.MethodPost, "/auth/password-reset", nil, map[string]string{"email": email}, &resp)
	return resp, err
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, rp user.ResetUserPassword) (SuccessResponse, error) {
	var resp SuccessResponse
	err := c.do(ctx, http.MethodPost, "/auth/password-reset-confirm", nil, rp, &resp)
	return resp, err
}

func (c *Client) Users(ctx context.Context, q UserQuery) ([]user.User, error) {
	var users []user.User
	err := c.do(ctx, http.MethodGet, "/users", q.values(), nil, &users)
	return users, err
}

func (c *Client) Roles(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	err := c.do(ctx, http.MethodGet, "/users/roles", nil, nil, &roles)
	return roles, err
}

func (c *Client) User(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &usr)
	return usr, err
}

func (c *Client) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPost, "/users", nil, nu, &usr)
	return usr, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), nil, uu, &usr)
	return usr, err
}

func (c *Client) UpdateRole(ctx context.Context, id, role string) (user.User, error) {
	var usr user.User
	err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/role", nil, user.UpdateRole{Role: role}, &usr)
	return usr, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) DeleteUsers(ctx context.Context, ids ...string) error {
	return c.do(ctx, http.MethodDelete, "/users", url.Values{"id": ids}, nil, nil)
}
