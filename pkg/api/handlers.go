package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	scalargo "github.com/bdpiprava/scalar-go"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/service"
)

type QueryService interface {
	Compare(ctx context.Context, product string, platforms []string) ([]byte, error)
	Search(ctx context.Context, query string, platforms []string) ([]byte, error)
	Product(ctx context.Context, id string) ([]byte, error)
	Scrape(ctx context.Context, platform, query string) (*models.ScrapeResult, error)
}

// CacheStatus reports which cache backend is serving requests.
type CacheStatus interface {
	Mode() string
}

type Handler struct {
	svc     QueryService
	cache   CacheStatus
	logger  *slog.Logger
	specDir string
}

func NewHandler(svc QueryService, cache CacheStatus, specDir string, l *slog.Logger) *Handler {
	if specDir == "" {
		specDir = "./"
	}
	return &Handler{
		svc:     svc,
		cache:   cache,
		logger:  l.With("component", "http"),
		specDir: specDir,
	}
}

// Routes returns the API mux wrapped in request ID and access log middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /compare", h.compare)
	mux.HandleFunc("GET /search", h.search)
	mux.HandleFunc("GET /product/{id}", h.product)
	mux.HandleFunc("POST /scrape", h.scrape)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /{$}", h.docs)

	return RequestID(AccessLog(h.logger, mux))
}

func writeJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handler) encode(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response", "path", r.URL.Path, "error", err)
		WriteInternalServerError(w, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	product := q.Get("product")
	if product == "" {
		WriteBadRequest(w, "Product query parameter is required", r.URL.Path)
		return
	}

	data, err := h.svc.Compare(r.Context(), product, service.ParsePlatforms(q.Get("platforms")))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		WriteBadRequest(w, "Search query parameter \"q\" is required", r.URL.Path)
		return
	}

	data, err := h.svc.Search(r.Context(), query, service.ParsePlatforms(q.Get("platforms")))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) product(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Product(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type scrapeRequest struct {
	Platform string `json:"platform"`
	Query    string `json:"query"`
}

func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req scrapeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body. Expected {\"platform\": ..., \"query\": ...}", r.URL.Path)
		return
	}

	result, err := h.svc.Scrape(r.Context(), req.Platform, req.Query)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	h.encode(w, r, result)
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.encode(w, r, healthResponse{Status: "ok", Cache: h.cache.Mode()})
}

func (h *Handler) docs(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(h.specDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Hunter Compare API"),
		),
	)
	if err != nil {
		h.logger.Error("render api reference", "error", err)
		WriteInternalServerError(w, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}
