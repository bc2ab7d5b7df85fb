// Package supplier is the remote catalog client.
package supplier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"catalog_sync/internal/config"
	"catalog_sync/internal/domain"
	"catalog_sync/internal/domain/entity"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/httpx"
	"catalog_sync/pkg/logx"
	"catalog_sync/pkg/retryx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *retryx.Executor
}

func NewClient(cfg config.Supplier, executor *retryx.Executor) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: httpx.NewAPIKeyRoundTripper(
				httpx.NewLoggingRoundTripper(
					http.DefaultTransport,
					httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
				),
				cfg.APIKey,
			),
		},
		executor: executor,
	}
}

// GetProduct fetches the current supplier data for one product id.
func (c *Client) GetProduct(ctx context.Context, supplierID string) (entity.SourceProduct, error) {
	schema, err := retryx.Do(ctx, c.executor, func(ctx context.Context) (productSchema, error) {
		return c.getProduct(ctx, supplierID)
	})
	if err != nil {
		return entity.SourceProduct{}, mapError(err, supplierID)
	}

	return schema.toDomain(), nil
}

func (c *Client) getProduct(ctx context.Context, supplierID string) (productSchema, error) {
	var schema productSchema

	url := fmt.Sprintf("%s/products/%s", c.baseURL, supplierID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return schema, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return schema, fmt.Errorf("httpClient.Do: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return schema, &retryx.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		return schema, fmt.Errorf("json.Decode: %w", err)
	}

	return schema, nil
}

func mapError(err error, supplierID string) error {
	switch code(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.WrapError(err, errcodes.SupplierAuthFailed, "supplier rejected credentials")
	case http.StatusNotFound:
		return domain.WrapError(err, errcodes.ProductNotFound,
			fmt.Sprintf("product %s not found at supplier", supplierID))
	case http.StatusTooManyRequests:
		return domain.WrapError(err, errcodes.RateLimited, "supplier rate limit exhausted")
	default:
		return err
	}
}

func code(err error) int {
	var httpErr *retryx.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}
