package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"catalog_sync/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) {
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Post("/sync", handler(s.postV1Sync))
			r.Get("/jobs/{id}", handler(s.getV1Job))
			r.Get("/records/{supplierId}", handler(s.getV1Record))
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}
