package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/internal/apierr"
)

// ListProducts accepts both a bare JSON array and an {"items": [...]} envelope.
func (c *Client) ListProducts(ctx context.Context, skip, limit int) ([]domain.Product, error) {
	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "list_products",
		method: http.MethodGet,
		path:   "/products",
		query:  query,
	}, &raw)
	if err != nil {
		return nil, err
	}

	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		list = list.Get("items")
	}
	if !list.IsArray() {
		return nil, &apierr.DecodeError{Op: "list_products", Status: http.StatusOK, Err: fmt.Errorf("unexpected product list shape")}
	}

	products := make([]domain.Product, 0, len(list.Array()))
	if err := json.Unmarshal([]byte(list.Raw), &products); err != nil {
		return nil, &apierr.DecodeError{Op: "list_products", Status: http.StatusOK, Err: fmt.Errorf("failed to decode products: %w", err)}
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, request{
		op:     "get_product",
		method: http.MethodGet,
		path:   fmt.Sprintf("/products/%d", id),
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CheckStock(ctx context.Context, id int64, quantity int) (*domain.StockCheck, error) {
	var sc domain.StockCheck
	err := c.do(ctx, request{
		op:     "check_stock",
		method: http.MethodPost,
		path:   fmt.Sprintf("/products/%d/check-stock", id),
		body:   map[string]int{"quantity": quantity},
	}, &sc)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}
