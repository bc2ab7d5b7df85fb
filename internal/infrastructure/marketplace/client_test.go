package marketplace_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalog_sync/internal/config"
	"catalog_sync/internal/infrastructure/marketplace"
	"catalog_sync/pkg/retryx"
)

type staticTokens string

func (t staticTokens) Token(context.Context) (string, error) {
	return string(t), nil
}

func newClient(baseURL string) *marketplace.Client {
	return marketplace.NewClient(
		config.Marketplace{
			BaseURL:        baseURL,
			UserID:         "u-1",
			RequestTimeout: 5 * time.Second,
		},
		staticTokens("test-token"),
		retryx.New(retryx.WithMaxAttempts(2), retryx.WithBaseDelay(time.Millisecond)),
	)
}

func TestGetItemSendsBearerToken(t *testing.T) {
	rq := require.New(t)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/items/itm-1", r.URL.Path)
		rq.Equal("Bearer test-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{"id":"itm-1","sku":"sup-1","title":"Hades II","price":18990,"status":"active"}`))
	}))
	defer httpServer.Close()

	item, err := newClient(httpServer.URL).GetItem(context.Background(), "itm-1")

	rq.NoError(err)
	rq.Equal("itm-1", item.ID)
	rq.Equal(int64(18990), item.Price)
	rq.True(item.Active())
}

func TestCreateItemValidationError(t *testing.T) {
	rq := require.New(t)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"code":"INVALID_TITLE","message":"title contains forbidden markup","field":"title"}`))
	}))
	defer httpServer.Close()

	_, err := newClient(httpServer.URL).CreateItem(context.Background(), marketplace.ItemDraft{
		SKU:   "sup-1",
		Title: "Hades <II>",
		Price: 18990,
	})

	validationErr, ok := marketplace.AsValidationError(err)
	rq.True(ok)
	rq.Equal(marketplace.CauseTitle, validationErr.Cause)
}

func TestUpdateItemPatchesPriceAndTitleOnly(t *testing.T) {
	rq := require.New(t)

	var body []byte

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal(http.MethodPut, r.Method)
		rq.Equal("/items/itm-1", r.URL.Path)

		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer httpServer.Close()

	price := int64(17990)

	err := newClient(httpServer.URL).UpdateItem(context.Background(), "itm-1",
		marketplace.ItemPatch{Price: &price})

	rq.NoError(err)
	rq.JSONEq(`{"price":17990}`, string(body))
}

func TestFindBySKUPaginates(t *testing.T) {
	rq := require.New(t)

	const pageSize = 50

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/users/u-1/items/search", r.URL.Path)
		rq.Equal("active", r.URL.Query().Get("status"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		items := `[`
		if offset == 0 {
			// A full first page without a match forces a second page.
			for i := 0; i < pageSize; i++ {
				if i > 0 {
					items += ","
				}
				items += fmt.Sprintf(`{"id":"itm-%d","sku":"other-%d","status":"active"}`, i, i)
			}
		} else {
			items += `{"id":"itm-x","sku":"sup-1","status":"active"}`
		}
		items += `]`

		w.Write([]byte(`{"items":` + items + `}`))
	}))
	defer httpServer.Close()

	listing, err := newClient(httpServer.URL).FindBySKU(context.Background(), "sup-1")

	rq.NoError(err)
	rq.NotNil(listing)
	rq.Equal("itm-x", listing.ID)
}

func TestFindBySKUNotFound(t *testing.T) {
	rq := require.New(t)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer httpServer.Close()

	listing, err := newClient(httpServer.URL).FindBySKU(context.Background(), "sup-1")

	rq.NoError(err)
	rq.Nil(listing)
}

func TestPauseItem(t *testing.T) {
	rq := require.New(t)

	var body []byte

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer httpServer.Close()

	err := newClient(httpServer.URL).PauseItem(context.Background(), "itm-1")

	rq.NoError(err)
	rq.JSONEq(`{"status":"paused"}`, string(body))
}
