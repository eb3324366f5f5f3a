package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/logger"
	"github.com/freyrlabs/freyr/internal/service"
)

// handleSaveAssociations processes the POST /api/v1/associations request.
//
// Responsibilities:
// 1. Decodes the JSON payload into the SaveAssociationsRequest DTO.
// 2. Sanitizes and validates each rule, including its condition tree.
// 3. Converts the DTOs to domain models.
// 4. Persists the batch through the lifecycle service.
// 5. Returns the saved resources (with ids assigned) and a 200 OK status.
func (a *API) handleSaveAssociations(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req SaveAssociationsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	if len(req.Associations) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "At least one association is required",
		})
		return
	}

	records := make([]*association.Association, 0, len(req.Associations))
	for i := range req.Associations {
		dto := &req.Associations[i]
		dto.Sanitize()

		if errResp := dto.Validate(); errResp != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errResp)
			return
		}

		record, err := dto.toDomain(a.registry)
		if err != nil {
			// The tree failed to build: unknown kind or malformed payload.
			log.Warn("rejected condition tree", slog.String("error", err.Error()))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INVALID_CONDITION",
				Message: fmt.Sprintf("Association %d has an invalid condition tree: %v", i, err),
			})
			return
		}
		records = append(records, record)
	}

	saved, err := a.lifecycle.Save(r.Context(), records)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRecord) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: err.Error(),
			})
			return
		}

		log.Error("failed to save associations", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to save associations",
		})
		return
	}

	dtos := make([]AssociationDTO, len(saved))
	for i, record := range saved {
		dtos[i] = mapAssociationToDTO(record)
	}

	log.Info("associations saved", slog.Int("count", len(dtos)))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, SaveAssociationsRequest{Associations: dtos})
}

// handleListAssociations processes the GET /api/v1/associations request.
// It serves the authoring surface: disabled and out-of-window rules are
// included.
func (a *API) handleListAssociations(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	storeID := strings.TrimSpace(r.URL.Query().Get("store_id"))
	if storeID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: "parameter 'store_id' is required",
		})
		return
	}
	group := strings.TrimSpace(r.URL.Query().Get("group"))

	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: err.Error(),
		})
		return
	}

	pageSize, err := parseOptionalInt(r, "page_size", 10)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: err.Error(),
		})
		return
	}

	// Silently clamp out-of-bounds values to keep the pager stable.
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100 // Hard limit to prevent large queries
	}

	offset := (page - 1) * pageSize

	records, totalItems, err := a.lifecycle.List(r.Context(), storeID, group, pageSize, offset)
	if err != nil {
		log.Error("failed to list associations", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to list associations",
		})
		return
	}

	dtos := make([]AssociationDTO, len(records))
	for i, record := range records {
		dtos[i] = mapAssociationToDTO(record)
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}

	resp := PaginatedResponse{
		Data: dtos,
		Pagination: Pagination{
			TotalItems:  totalItems,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleGetAssociation processes the GET /api/v1/associations/{id} request.
func (a *API) handleGetAssociation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	id := chi.URLParam(r, "id")

	records, err := a.lifecycle.GetByIDs(r.Context(), []string{id})
	if err != nil {
		log.Error("failed to get association", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to get association",
		})
		return
	}

	if len(records) == 0 {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: "Association not found",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, mapAssociationToDTO(records[0]))
}

// handleDeleteAssociation processes the DELETE /api/v1/associations/{id}
// request. Deleting an unknown id is a no-op and still returns 204.
func (a *API) handleDeleteAssociation(w http.ResponseWriter, r *http.Request) {
	a.deleteByIDs(w, r, []string{chi.URLParam(r, "id")})
}

// handleDeleteAssociations processes the DELETE /api/v1/associations?ids=a,b
// request for batch deletion.
func (a *API) handleDeleteAssociations(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: "parameter 'ids' is required",
		})
		return
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	a.deleteByIDs(w, r, ids)
}

func (a *API) deleteByIDs(w http.ResponseWriter, r *http.Request, ids []string) {
	log := logger.FromContext(r.Context())

	if err := a.lifecycle.Delete(r.Context(), ids); err != nil {
		log.Error("failed to delete associations", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to delete associations",
		})
		return
	}

	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
// It only returns an error if the parameter is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}
