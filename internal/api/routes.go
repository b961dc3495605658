// Package api exposes the autofill pipeline over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"piso-search/internal/autofill"
	"piso-search/internal/db"
	"piso-search/internal/territory"
)

// NewRouter creates and configures the Chi router
func NewRouter(svc *autofill.Service, gaz *territory.Index, database *db.DB) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS)

	// Create handlers
	h := NewHandlers(svc, gaz, database)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/autofill", h.Autofill)
		r.Post("/autofill/from-html", h.AutofillFromHTML)
		r.Get("/territory/regions", h.ListRegions)
		r.Get("/territory/regions/{code}/cities", h.ListRegionCities)
		r.Get("/listings", h.ListListings)
	})

	r.Get("/health", h.Health)

	return r
}
