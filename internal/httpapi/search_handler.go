package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/evaluation"
	"github.com/freyrlabs/freyr/internal/logger"
	"github.com/freyrlabs/freyr/internal/search"
)

// handleSearch processes the POST /api/v1/associations/search request: the
// storefront-facing operation that resolves which rules currently hold for a
// set of anchor products.
func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SearchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	query := search.Query{
		StoreID:    req.StoreID,
		ProductIDs: req.ProductIDs,
		Group:      req.Group,
		Skip:       req.Skip,
		Take:       req.Take,
	}
	if req.At != nil {
		query.At = *req.At
	}

	result, err := a.searcher.Search(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrInvalidQuery):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INVALID_QUERY",
				Message: err.Error(),
			})
		case errors.Is(err, association.ErrStoreUnavailable):
			log.Error("association store unavailable", slog.String("error", err.Error()))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_STORE_UNAVAILABLE",
				Message: "Association storage is unavailable",
			})
		default:
			log.Error("search failed", slog.String("error", err.Error()))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INTERNAL",
				Message: "Search failed",
			})
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// handleEvaluate processes the POST /api/v1/evaluate request: a dry run of a
// condition tree against live catalog data, used by the authoring UI to
// preview a rule before saving it.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req EvaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	if req.StoreID == "" || len(req.ProductIDs) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "store_id and product_ids are required",
		})
		return
	}

	node, err := a.registry.Build(req.Condition)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_CONDITION",
			Message: "Invalid condition tree: " + err.Error(),
		})
		return
	}

	evalCtx, err := evaluation.NewContext(r.Context(), req.StoreID, req.ProductIDs, a.categories, a.properties)
	if err != nil {
		log.Error("failed to build evaluation context", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to load catalog data for evaluation",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, EvaluateResponse{Matched: node.Matches(evalCtx)})
}
