package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tvdermeer/3dprint-website/domain"
)

// Login exchanges credentials for a bearer token. The backend expects the email as "username".
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok domain.TokenResponse
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login/access-token",
		form:   form,
	}, &tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *Client) Signup(ctx context.Context, req domain.SignupRequest) (*domain.User, error) {
	var user domain.User
	err := c.do(ctx, request{
		op:     "signup",
		method: http.MethodPost,
		path:   "/auth/signup",
		body:   req,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) RecoverPassword(ctx context.Context, email string) (*domain.Message, error) {
	var msg domain.Message
	err := c.do(ctx, request{
		op:     "recover_password",
		method: http.MethodPost,
		path:   "/auth/recover-password",
		body:   map[string]string{"email": email},
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.Message, error) {
	var msg domain.Message
	err := c.do(ctx, request{
		op:     "reset_password",
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body:   map[string]string{"token": resetToken, "new_password": newPassword},
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
