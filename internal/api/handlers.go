package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"piso-search/internal/autofill"
	"piso-search/internal/db"
	"piso-search/internal/territory"
)

// maxBodyBytes bounds request bodies; from-html carries whole listing pages,
// which run to a few MB.
const maxBodyBytes = 8 << 20

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	svc *autofill.Service
	gaz *territory.Index
	db  *db.DB
}

// NewHandlers creates a new Handlers instance. database may be nil when
// persistence is disabled.
func NewHandlers(svc *autofill.Service, gaz *territory.Index, database *db.DB) *Handlers {
	return &Handlers{svc: svc, gaz: gaz, db: database}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type autofillRequest struct {
	URL     string `json:"url"`
	Cookies string `json:"cookies"`
}

// Autofill handles POST /api/autofill
func (h *Handlers) Autofill(w http.ResponseWriter, r *http.Request) {
	var req autofillRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := h.svc.AutofillFromURL(r.Context(), req.URL, req.Cookies)
	writeJSON(w, http.StatusOK, result)
}

type fromHTMLRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// AutofillFromHTML handles POST /api/autofill/from-html
func (h *Handlers) AutofillFromHTML(w http.ResponseWriter, r *http.Request) {
	var req fromHTMLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		writeError(w, http.StatusBadRequest, "html is required")
		return
	}

	result := h.svc.ExtractFromHTML(req.URL, req.HTML)
	writeJSON(w, http.StatusOK, result)
}

// ListRegions handles GET /api/territory/regions
func (h *Handlers) ListRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gaz.Regions())
}

// ListRegionCities handles GET /api/territory/regions/{code}/cities
func (h *Handlers) ListRegionCities(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid region code")
		return
	}
	if _, ok := h.gaz.RegionName(code); !ok {
		writeError(w, http.StatusNotFound, "unknown region code")
		return
	}
	writeJSON(w, http.StatusOK, h.gaz.CitiesInRegion(code))
}

// ListListings handles GET /api/listings
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	q := r.URL.Query()
	filter := db.ListingFilter{City: q.Get("city")}
	if v := q.Get("region"); v != "" {
		if code, err := strconv.Atoi(v); err == nil {
			filter.RegionCode = &code
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	rows, err := h.db.ListListings(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
