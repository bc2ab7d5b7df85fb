// Package marketplace is the destination sales channel client.
package marketplace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

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

const searchPageSize = 50

// tokenSource provides the current bearer token, usually the redis token
// store.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// storeAuthenticator adapts a token source to the httpx authenticator
// contract.
type storeAuthenticator struct {
	source tokenSource

	mu    sync.RWMutex
	token string
}

func (a *storeAuthenticator) Authenticate(ctx context.Context) error {
	token, err := a.source.Token(ctx)
	if err != nil {
		return fmt.Errorf("source.Token: %w", err)
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()

	return nil
}

func (a *storeAuthenticator) BearerToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.token
}

type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	executor   *retryx.Executor
}

func NewClient(cfg config.Marketplace, tokens tokenSource, executor *retryx.Executor) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		userID:  cfg.UserID,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: httpx.NewAuthBearerRoundTripper(
				httpx.NewLoggingRoundTripper(
					http.DefaultTransport,
					httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
				),
				&storeAuthenticator{source: tokens},
			),
		},
		executor: executor,
	}
}

// GetItem fetches the live state of one listing.
func (c *Client) GetItem(ctx context.Context, itemID string) (entity.MarketplaceListing, error) {
	var schema itemSchema

	err := c.executor.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/items/"+itemID, nil, &schema)
	})
	if err != nil {
		return entity.MarketplaceListing{}, c.mapError(err, "item "+itemID)
	}

	return schema.toDomain(), nil
}

// CreateItem creates a listing and returns its marketplace id.
func (c *Client) CreateItem(ctx context.Context, draft ItemDraft) (string, error) {
	var schema itemSchema

	err := c.executor.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/items", draft, &schema)
	})
	if err != nil {
		return "", c.mapError(err, "create item")
	}

	return schema.ID, nil
}

// UpdateItem patches price and/or title of a live listing.
func (c *Client) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) error {
	err := c.executor.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, "/items/"+itemID, patch, nil)
	})
	if err != nil {
		return c.mapError(err, "update item "+itemID)
	}

	return nil
}

// SetDescription upserts the listing description. The endpoint is
// idempotent.
func (c *Client) SetDescription(ctx context.Context, itemID, description string) error {
	err := c.executor.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, "/items/"+itemID+"/description",
			descriptionBody{Description: description}, nil)
	})
	if err != nil {
		return c.mapError(err, "set description of item "+itemID)
	}

	return nil
}

// PauseItem takes a listing off sale without closing it.
func (c *Client) PauseItem(ctx context.Context, itemID string) error {
	return c.setStatus(ctx, itemID, "paused")
}

// CloseItem permanently closes a listing.
func (c *Client) CloseItem(ctx context.Context, itemID string) error {
	return c.setStatus(ctx, itemID, "closed")
}

func (c *Client) setStatus(ctx context.Context, itemID, status string) error {
	err := c.executor.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPut, "/items/"+itemID, statusPatch{Status: status}, nil)
	})
	if err != nil {
		return c.mapError(err, "set status of item "+itemID)
	}

	return nil
}

// FindBySKU scans the user's active listings for one carrying the SKU.
// Returns nil when none exists.
func (c *Client) FindBySKU(ctx context.Context, sku string) (*entity.MarketplaceListing, error) {
	for offset := 0; ; offset += searchPageSize {
		var schema searchSchema

		endpoint := fmt.Sprintf("/users/%s/items/search?%s", c.userID, url.Values{
			"status": {"active"},
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(searchPageSize)},
		}.Encode())

		err := c.executor.Do(ctx, func(ctx context.Context) error {
			return c.do(ctx, http.MethodGet, endpoint, nil, &schema)
		})
		if err != nil {
			return nil, c.mapError(err, "search items")
		}

		for _, item := range schema.Items {
			if item.SKU == sku {
				listing := item.toDomain()
				return &listing, nil
			}
		}

		if len(schema.Items) < searchPageSize {
			return nil, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, dest any) error {
	var payload io.Reader = http.NoBody

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		var schema errorSchema

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &schema)

		if schema.Message == "" {
			schema.Message = string(raw)
		}

		return &ValidationError{
			Cause:   classifyCause(schema),
			Message: schema.Message,
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return &retryx.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       string(raw),
		}
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("json.Decode: %w", err)
		}
	}

	return nil
}

func (c *Client) mapError(err error, operation string) error {
	var httpErr *retryx.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(err, errcodes.MarketplaceAuthFailed,
				"marketplace rejected credentials: "+operation)
		case http.StatusNotFound:
			return domain.WrapError(err, errcodes.ListingNotFound, operation+" not found")
		}
	}

	return err
}
