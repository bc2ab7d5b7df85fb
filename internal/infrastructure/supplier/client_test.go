package supplier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalog_sync/internal/config"
	"catalog_sync/internal/domain"
	"catalog_sync/internal/infrastructure/supplier"
	"catalog_sync/pkg/errcodes"
	"catalog_sync/pkg/retryx"
)

func newClient(baseURL string) *supplier.Client {
	return supplier.NewClient(
		config.Supplier{
			BaseURL:        baseURL,
			APIKey:         "test-key",
			RequestTimeout: 5 * time.Second,
		},
		retryx.New(retryx.WithMaxAttempts(2), retryx.WithBaseDelay(time.Millisecond)),
	)
}

func TestGetProductNormalizesOffers(t *testing.T) {
	rq := require.New(t)

	const payload = `{
		"id": "sup-1",
		"name": "Hades II",
		"platform": "Steam",
		"region_limitations": "Region Free",
		"offers": [
			{"price": 7.50, "quantity": 3},
			{"price": 6.20, "qty": 0},
			{"price": 5.10, "stock_count": 12},
			{"price": 4.00, "is_available": false},
			{"price": 8.00, "in_stock": true},
			{"price": 9.00}
		]
	}`

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/products/sup-1", r.URL.Path)
		rq.Equal("test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer httpServer.Close()

	product, err := newClient(httpServer.URL).GetProduct(context.Background(), "sup-1")

	rq.NoError(err)
	rq.Equal("sup-1", product.SupplierID)
	rq.Equal("Hades II", product.Name)
	rq.Equal("Region Free", product.RegionLimit)
	rq.Len(product.Offers, 6)

	available := make([]bool, 0, len(product.Offers))
	for _, offer := range product.Offers {
		available = append(available, offer.Available)
	}

	// quantity>0, qty=0, stock_count>0, is_available=false, in_stock=true,
	// no availability field at all.
	rq.Equal([]bool{true, false, true, false, true, false}, available)

	best, ok := product.BestOffer()
	rq.True(ok)
	rq.Equal(5.10, best.Price)
}

func TestGetProductNotFound(t *testing.T) {
	rq := require.New(t)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer httpServer.Close()

	_, err := newClient(httpServer.URL).GetProduct(context.Background(), "missing")

	rq.Equal(errcodes.ProductNotFound, domain.GetCode(err))
}

func TestGetProductAuthFailure(t *testing.T) {
	rq := require.New(t)

	var calls int

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer httpServer.Close()

	_, err := newClient(httpServer.URL).GetProduct(context.Background(), "sup-1")

	rq.Equal(errcodes.SupplierAuthFailed, domain.GetCode(err))
	rq.Equal(1, calls, "auth failures must not be retried")
	rq.True(retryx.IsFatal(err))
}

func TestGetProductRetriesServerError(t *testing.T) {
	rq := require.New(t)

	var calls int

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.Write([]byte(`{"id":"sup-1","name":"Hades II","offers":[]}`))
	}))
	defer httpServer.Close()

	product, err := newClient(httpServer.URL).GetProduct(context.Background(), "sup-1")

	rq.NoError(err)
	rq.Equal(2, calls)
	rq.False(product.HasValidOffer())
}
