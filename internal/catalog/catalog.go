// Package catalog holds the product listing and the product being viewed.
package catalog

import (
	"context"
	"sync"

	"github.com/tvdermeer/3dprint-website/domain"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

// PageSize is how many products the storefront lists.
const PageSize = 10

const (
	MsgLoadProducts = "Failed to load products. Please try again later."
	MsgLoadProduct  = "Failed to load product details."
	MsgCheckStock   = "Failed to check stock."
)

type ProductAPI interface {
	ListProducts(ctx context.Context, skip, limit int) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CheckStock(ctx context.Context, id int64, quantity int) (*domain.StockCheck, error)
}

// LoadError carries a message fit for the customer; Err is the underlying failure.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string { return e.Message }

func (e *LoadError) Unwrap() error { return e.Err }

type Catalog struct {
	mu       sync.Mutex
	products []domain.Product
	current  *domain.Product
	loading  int
	lastErr  error

	api ProductAPI
	log *logger.Logger
}

func New(api ProductAPI, log *logger.Logger) *Catalog {
	return &Catalog{api: api, log: logger.OrNop(log)}
}

// FetchProducts loads the first page of products. On failure the previous listing is kept.
func (c *Catalog) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	c.begin()
	products, err := c.api.ListProducts(ctx, 0, PageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if err != nil {
		c.log.WithContext(ctx).Error("failed to fetch products", "error", err)
		c.lastErr = &LoadError{Message: MsgLoadProducts, Err: err}
		return nil, c.lastErr
	}
	c.products = products
	return append([]domain.Product(nil), products...), nil
}

// FetchProduct loads one product and makes it the current one.
func (c *Catalog) FetchProduct(ctx context.Context, id int64) (*domain.Product, error) {
	c.begin()
	product, err := c.api.GetProduct(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if err != nil {
		c.log.WithContext(ctx).Error("failed to fetch product", "product_id", id, "error", err)
		c.lastErr = &LoadError{Message: MsgLoadProduct, Err: err}
		return nil, c.lastErr
	}
	c.current = product
	p := *product
	return &p, nil
}

// CheckStock asks the backend whether quantity units of a product are available.
func (c *Catalog) CheckStock(ctx context.Context, id int64, quantity int) (*domain.StockCheck, error) {
	check, err := c.api.CheckStock(ctx, id, quantity)
	if err != nil {
		c.log.WithContext(ctx).Warn("stock check failed", "product_id", id, "error", err)
		err = &LoadError{Message: MsgCheckStock, Err: err}
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}
	return check, nil
}

func (c *Catalog) begin() {
	c.mu.Lock()
	c.loading++
	c.lastErr = nil
	c.mu.Unlock()
}

func (c *Catalog) Products() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Product(nil), c.products...)
}

// Featured is the product shown on the landing page: the first listed one, or nil.
func (c *Catalog) Featured() *domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.products) == 0 {
		return nil
	}
	p := c.products[0]
	return &p
}

func (c *Catalog) Current() *domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	p := *c.current
	return &p
}

func (c *Catalog) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

func (c *Catalog) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
