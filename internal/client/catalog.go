package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"catalog/browser/internal/config"
	"catalog/browser/internal/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

var (
	// ErrFetch wraps every transport failure and non-2xx response
	ErrFetch = errors.New("catalog fetch failed")
	// ErrCircuitOpen is returned while requests are suspended after HTTP 429
	ErrCircuitOpen = fmt.Errorf("%w: circuit breaker open", ErrFetch)
)

type CatalogClient interface {
	GetCategories(ctx context.Context, skip int) ([]domain.Category, error)
	GetProductsByCategory(ctx context.Context, slug string) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProducts(ctx context.Context, skip, limit int) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
}

type catalogClient struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client

	// Circuit breaker for rate-limited responses
	circuitBreakerMutex sync.RWMutex
	suspendedUntil      time.Time
	circuitBreakerDelay time.Duration
}

func NewCatalogClient(cfg config.APIConfig) CatalogClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.TimeoutDuration()).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Duration(cfg.RetryWait)*time.Millisecond).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &catalogClient{
		rl:                  rl,
		httpClient:          client,
		circuitBreakerDelay: cfg.CooldownDuration(),
	}
}

func (c *catalogClient) GetCategories(ctx context.Context, skip int) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.get(ctx, "/products/categories", map[string]string{
		"skip": strconv.Itoa(skip),
	}, nil, &categories)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories (skip=%d): %w", skip, err)
	}

	log.Debugf("Fetched %d categories (skip=%d)", len(categories), skip)
	return categories, nil
}

func (c *catalogClient) GetProductsByCategory(ctx context.Context, slug string) ([]domain.Product, error) {
	var page domain.ProductPage
	err := c.get(ctx, "/products/category/{slug}", nil, map[string]string{
		"slug": slug,
	}, &page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products for category %s: %w", slug, err)
	}

	log.Debugf("Fetched %d products for category %s", len(page.Products), slug)
	return page.Products, nil
}

func (c *catalogClient) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	var page domain.ProductPage
	err := c.get(ctx, "/products/search", map[string]string{
		"q": query,
	}, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("failed to search products for %q: %w", query, err)
	}

	log.Debugf("Search %q matched %d products", query, len(page.Products))
	return page.Products, nil
}

func (c *catalogClient) GetProducts(ctx context.Context, skip, limit int) (*domain.ProductPage, error) {
	params := map[string]string{"skip": strconv.Itoa(skip)}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var page domain.ProductPage
	if err := c.get(ctx, "/products", params, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch products (skip=%d): %w", skip, err)
	}

	return &page, nil
}

func (c *catalogClient) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	var product domain.Product
	err := c.get(ctx, "/products/{id}", nil, map[string]string{
		"id": strconv.Itoa(id),
	}, &product)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}

	return &product, nil
}

func (c *catalogClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.suspendedUntil)
	wasTriggered := !c.suspendedUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		// Double-check after acquiring write lock
		if !c.suspendedUntil.IsZero() && now.After(c.suspendedUntil) {
			c.suspendedUntil = time.Time{}
			log.Infof("✅ Circuit breaker re-enabled - requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *catalogClient) triggerCircuitBreaker() {
	if c.circuitBreakerDelay <= 0 {
		return
	}

	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.suspendedUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Circuit breaker activated! Requests disabled until %v",
		c.suspendedUntil.Format("15:04:05"))
}

func (c *catalogClient) get(ctx context.Context, path string, query, pathParams map[string]string, result any) error {
	if c.isCircuitBreakerOpen() {
		return ErrCircuitOpen
	}

	c.rl.Take()

	requestID := uuid.NewString()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetQueryParams(query).
		SetPathParams(pathParams).
		SetResult(result).
		Get(path)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: request cancelled: %w", ErrFetch, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	log.Debugf("GET %s -> %d (request %s)", path, resp.StatusCode(), requestID)

	if resp.StatusCode() == http.StatusTooManyRequests {
		c.triggerCircuitBreaker()
	}

	if resp.IsError() {
		return fmt.Errorf("%w: HTTP %s", ErrFetch, resp.Status())
	}

	return nil
}
