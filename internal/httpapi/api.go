package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/condition"
	"github.com/freyrlabs/freyr/internal/evaluation"
	"github.com/freyrlabs/freyr/internal/search"
)

// Lifecycle is the authoring contract the API consumes. The association
// service implements it; handler tests use fakes.
type Lifecycle interface {
	GetByIDs(ctx context.Context, ids []string) ([]*association.Association, error)
	List(ctx context.Context, storeID, group string, limit, offset int) ([]*association.Association, int64, error)
	Save(ctx context.Context, records []*association.Association) ([]*association.Association, error)
	Delete(ctx context.Context, ids []string) error
}

// API holds dependencies and the router for the REST surface.
// It follows the Dependency Injection pattern to facilitate testing.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	// lifecycle is the authoring service for association records.
	lifecycle Lifecycle

	// searcher serves association searches (usually the cached decorator).
	searcher search.Searcher

	// registry builds condition trees from their wire form.
	registry *condition.Registry

	// categories and properties feed the condition preview endpoint.
	categories evaluation.CategoryProvider
	properties evaluation.PropertyProvider

	// apiKeyHash is the SHA-256 hash of the valid API key.
	apiKeyHash string

	// skipAuth disables authentication when true (test/dev environments only).
	skipAuth bool
}

// NewAPI creates a new API instance with authentication enabled.
// The apiKeyHash parameter must be the SHA-256 hash of the API key.
func NewAPI(lifecycle Lifecycle, searcher search.Searcher, registry *condition.Registry,
	categories evaluation.CategoryProvider, properties evaluation.PropertyProvider, apiKeyHash string) *API {
	return NewAPIWithConfig(lifecycle, searcher, registry, categories, properties, apiKeyHash, false)
}

// NewAPIWithConfig creates a new API instance with explicit control over
// authentication. skipAuth exists for tests and development only.
//
// Panics if any dependency is nil, or if apiKeyHash is empty while
// authentication is enabled.
func NewAPIWithConfig(lifecycle Lifecycle, searcher search.Searcher, registry *condition.Registry,
	categories evaluation.CategoryProvider, properties evaluation.PropertyProvider,
	apiKeyHash string, skipAuth bool) *API {
	if lifecycle == nil {
		panic("httpapi: lifecycle service cannot be nil")
	}
	if searcher == nil {
		panic("httpapi: searcher cannot be nil")
	}
	if registry == nil {
		panic("httpapi: condition registry cannot be nil")
	}
	if categories == nil {
		panic("httpapi: category provider cannot be nil")
	}
	if properties == nil {
		panic("httpapi: property provider cannot be nil")
	}
	if !skipAuth && apiKeyHash == "" {
		panic("httpapi: apiKeyHash cannot be empty when authentication is enabled")
	}

	api := &API{
		Router:     chi.NewRouter(),
		lifecycle:  lifecycle,
		searcher:   searcher,
		registry:   registry,
		categories: categories,
		properties: properties,
		apiKeyHash: apiKeyHash,
		skipAuth:   skipAuth,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// RequestID: Adds a unique ID to each request context (essential for tracing).
	a.Router.Use(middleware.RequestID)
	// RealIP: correctly sets the IP if behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	// Logger: Logs request method, path, status, and duration.
	a.Router.Use(RequestLogger)
	// Metrics: records per-route latency and status counters.
	a.Router.Use(RequestMetrics)
	// Recoverer: Prevents the server from crashing on panics, returning 500 instead.
	a.Router.Use(middleware.Recoverer)
	// Content-Type: Forces JSON content type for API responses.
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	// Public routes (no authentication required)
	a.Router.Get("/health", a.handleHealthCheck)

	// Protected API V1 routes (authentication required)
	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authenticateAPIKey)

		r.Route("/associations", func(r chi.Router) {
			r.Post("/", a.handleSaveAssociations)
			r.Get("/", a.handleListAssociations)
			r.Delete("/", a.handleDeleteAssociations)
			r.Post("/search", a.handleSearch)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetAssociation)
				r.Delete("/", a.handleDeleteAssociation)
			})
		})

		r.Post("/evaluate", a.handleEvaluate)
	})
}

// handleHealthCheck confirms the HTTP surface is serving. Deep dependency
// checks live on the observability server's readiness probe.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// authenticateAPIKey rejects requests whose X-API-Key header does not hash to
// the configured digest. The comparison is constant-time on the hex digests.
func (a *API) authenticateAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_UNAUTHORIZED",
				Message: "Missing API key",
			})
			return
		}

		sum := sha256.Sum256([]byte(key))
		digest := hex.EncodeToString(sum[:])

		if subtle.ConstantTimeCompare([]byte(digest), []byte(a.apiKeyHash)) != 1 {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_UNAUTHORIZED",
				Message: "Invalid API key",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
