package api

import (
	"context"
	"net/http"

	"github.com/tvdermeer/3dprint-website/domain"
)

func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	err := c.do(ctx, request{
		op:     "me",
		method: http.MethodGet,
		path:   "/users/me",
		token:  token,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateMe(ctx context.Context, token string, patch domain.ProfileUpdate) (*domain.User, error) {
	var user domain.User
	err := c.do(ctx, request{
		op:     "update_me",
		method: http.MethodPut,
		path:   "/users/me",
		token:  token,
		body:   patch,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MyOrders lists the signed-in user's orders, newest first as returned by the backend.
func (c *Client) MyOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.do(ctx, request{
		op:     "my_orders",
		method: http.MethodGet,
		path:   "/users/me/orders",
		token:  token,
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
