// Package httpapi implements the REST surface of the Freyr server: the
// association authoring endpoints, the search endpoint, and the condition
// preview endpoint. It handles HTTP routing, request decoding, validation,
// and response formatting.
package httpapi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/condition"
)

// AssociationDTO represents an association rule on the wire.
type AssociationDTO struct {
	// ID is assigned by the server on first save. Read-only.
	ID string `json:"id,omitempty"`

	// StoreID scopes the rule to one store. Required.
	StoreID string `json:"store_id"`

	// Group partitions rules into independent sets (e.g. "cross-sell").
	Group string `json:"group,omitempty"`

	// Name is the human-readable label. Required.
	Name string `json:"name"`

	// Description provides optional context about the rule's purpose.
	Description string `json:"description,omitempty"`

	// Priority orders matched rules; lower wins.
	Priority int `json:"priority"`

	// Enabled is the master switch.
	Enabled bool `json:"enabled"`

	// StartDate and EndDate bound the active window (inclusive, optional).
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Condition is the rule's condition tree in its tagged JSON form.
	Condition json.RawMessage `json:"condition"`

	// TargetProductIDs is the ordered list of products returned on a match.
	TargetProductIDs []string `json:"target_product_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sanitize cleans up input data by trimming whitespace.
func (d *AssociationDTO) Sanitize() {
	d.ID = strings.TrimSpace(d.ID)
	d.StoreID = strings.TrimSpace(d.StoreID)
	d.Group = strings.TrimSpace(d.Group)
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
}

// Validate checks if the request data adheres to business rules.
// It returns a structured *ErrorResponse if validation fails, or nil if valid.
func (d *AssociationDTO) Validate() *ErrorResponse {
	if d.StoreID == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "store_id is required",
		}
	}
	if d.Name == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "name is required",
		}
	}
	if len(d.Name) > 255 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "name must be less than 255 characters",
		}
	}
	if d.Priority < 0 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "priority cannot be negative",
		}
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "end_date cannot be before start_date",
		}
	}
	if len(d.Condition) == 0 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "condition is required",
		}
	}
	return nil
}

// toDomain converts the DTO to the domain model, building the condition tree
// through the registry. Unknown or malformed trees are rejected here, before
// anything touches the store.
func (d *AssociationDTO) toDomain(registry *condition.Registry) (*association.Association, error) {
	node, err := registry.Build(d.Condition)
	if err != nil {
		return nil, err
	}

	return &association.Association{
		ID:               d.ID,
		StoreID:          d.StoreID,
		Group:            d.Group,
		Name:             d.Name,
		Description:      d.Description,
		Priority:         d.Priority,
		Enabled:          d.Enabled,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		Condition:        node,
		TargetProductIDs: d.TargetProductIDs,
	}, nil
}

// mapAssociationToDTO converts the domain model to the API response DTO.
func mapAssociationToDTO(a *association.Association) AssociationDTO {
	tree, err := json.Marshal(a.Condition)
	if err != nil {
		// Domain trees were built through the registry, so this only fires on
		// a custom node with a broken marshaler.
		tree = json.RawMessage("null")
	}

	targets := a.TargetProductIDs
	if targets == nil {
		targets = []string{}
	}

	return AssociationDTO{
		ID:               a.ID,
		StoreID:          a.StoreID,
		Group:            a.Group,
		Name:             a.Name,
		Description:      a.Description,
		Priority:         a.Priority,
		Enabled:          a.Enabled,
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
		Condition:        tree,
		TargetProductIDs: targets,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// SaveAssociationsRequest defines the payload for creating or updating rules.
type SaveAssociationsRequest struct {
	Associations []AssociationDTO `json:"associations"`
}

// SearchRequest defines the payload for the association search endpoint.
type SearchRequest struct {
	// StoreID scopes the search. Required.
	StoreID string `json:"store_id"`

	// ProductIDs are the anchor products. Required, non-empty.
	ProductIDs []string `json:"product_ids"`

	// Group optionally narrows the search to one rule group.
	Group string `json:"group,omitempty"`

	// Skip and Take page the matched associations.
	Skip int `json:"skip"`
	Take int `json:"take"`

	// At optionally pins the evaluation instant; omitted means "now".
	At *time.Time `json:"at,omitempty"`
}

// EvaluateRequest defines the payload for the condition preview endpoint.
// Merchandisers use it to dry-run a tree against real catalog data before
// saving a rule.
type EvaluateRequest struct {
	StoreID    string          `json:"store_id"`
	ProductIDs []string        `json:"product_ids"`
	Condition  json.RawMessage `json:"condition"`
}

// EvaluateResponse reports whether the tree matched the anchor products.
type EvaluateResponse struct {
	Matched bool `json:"matched"`
}

// PaginatedResponse is a standard wrapper for list endpoints to support offset pagination.
type PaginatedResponse struct {
	// Data holds the list of resources (e.g., []AssociationDTO).
	Data interface{} `json:"data"`

	// Pagination contains paging metadata.
	Pagination Pagination `json:"pagination"`
}

// Pagination metadata for the frontend pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`
}
