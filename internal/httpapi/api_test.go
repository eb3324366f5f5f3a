package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/condition"
	"github.com/freyrlabs/freyr/internal/search"
	"github.com/freyrlabs/freyr/internal/service"
)

// fakeLifecycle implements Lifecycle with canned data and call recording.
type fakeLifecycle struct {
	records map[string]*association.Association
	saveErr error
	listErr error
	nextID  int

	deleted [][]string
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{records: make(map[string]*association.Association)}
}

func (f *fakeLifecycle) GetByIDs(_ context.Context, ids []string) ([]*association.Association, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*association.Association
	for _, id := range ids {
		if r, ok := f.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLifecycle) List(_ context.Context, storeID, group string, limit, offset int) ([]*association.Association, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []*association.Association
	for _, r := range f.records {
		if r.StoreID == storeID && (group == "" || r.Group == group) {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeLifecycle) Save(_ context.Context, records []*association.Association) ([]*association.Association, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	for _, r := range records {
		if r.ID == "" {
			f.nextID++
			r.ID = fmt.Sprintf("assoc-%d", f.nextID)
		}
		f.records[r.ID] = r
	}
	return records, nil
}

func (f *fakeLifecycle) Delete(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids)
	for _, id := range ids {
		delete(f.records, id)
	}
	return nil
}

// fakeSearcher returns a canned result or error.
type fakeSearcher struct {
	result *search.Result
	err    error
	last   search.Query
}

func (f *fakeSearcher) Search(_ context.Context, q search.Query) (*search.Result, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeProviders answer category and property lookups from fixed maps.
type fakeCategoryProvider struct{ categories []string }

func (f *fakeCategoryProvider) MemberCategories(_ context.Context, _ []string) ([]string, error) {
	return f.categories, nil
}

type fakePropertyProvider struct{ properties map[string][]string }

func (f *fakePropertyProvider) PropertyValues(_ context.Context, _ []string) (map[string][]string, error) {
	return f.properties, nil
}

type apiFixture struct {
	api        *API
	lifecycle  *fakeLifecycle
	searcher   *fakeSearcher
	categories *fakeCategoryProvider
	properties *fakePropertyProvider
}

func newAPIFixture() *apiFixture {
	lifecycle := newFakeLifecycle()
	searcher := &fakeSearcher{result: &search.Result{Matches: []search.Match{}}}
	categories := &fakeCategoryProvider{}
	properties := &fakePropertyProvider{properties: map[string][]string{}}

	api := NewAPIWithConfig(lifecycle, searcher, condition.NewRegistry(), categories, properties, "", true)

	return &apiFixture{
		api:        api,
		lifecycle:  lifecycle,
		searcher:   searcher,
		categories: categories,
		properties: properties,
	}
}

func doJSON(t *testing.T, api *API, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	api.Router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	return errResp
}

func validDTO() AssociationDTO {
	return AssociationDTO{
		StoreID:          "store-1",
		Group:            "cross-sell",
		Name:             "accessories",
		Enabled:          true,
		Condition:        json.RawMessage(`{"kind":"block","children":[{"kind":"product-category","category_ids":["cat-1"]}]}`),
		TargetProductIDs: []string{"target-1"},
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	fx := newAPIFixture()

	rec := doJSON(t, fx.api, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	// sha256("test-api-key")
	const keyHash = "4c806362b613f7496abf284146efd31da90e4b16169fe001841ca17290f427c4"

	lifecycle := newFakeLifecycle()
	searcher := &fakeSearcher{result: &search.Result{}}
	api := NewAPIWithConfig(lifecycle, searcher, condition.NewRegistry(),
		&fakeCategoryProvider{}, &fakePropertyProvider{}, keyHash, false)

	t.Run("missing key is rejected", func(t *testing.T) {
		rec := doJSON(t, api, http.MethodGet, "/api/v1/associations?store_id=store-1", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "ERR_UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/associations?store_id=store-1", nil)
		req.Header.Set("X-API-Key", "not-the-key")
		rec := httptest.NewRecorder()
		api.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("correct key is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/associations?store_id=store-1", nil)
		req.Header.Set("X-API-Key", "test-api-key")
		rec := httptest.NewRecorder()
		api.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays public", func(t *testing.T) {
		rec := doJSON(t, api, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSaveAssociations(t *testing.T) {
	t.Run("valid batch is saved and returned with ids", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations",
			SaveAssociationsRequest{Associations: []AssociationDTO{validDTO(), validDTO()}})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp SaveAssociationsRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Associations, 2)
		assert.NotEmpty(t, resp.Associations[0].ID)
		assert.NotEmpty(t, resp.Associations[1].ID)
		assert.Len(t, fx.lifecycle.records, 2)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/associations", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		fx.api.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_JSON", decodeError(t, rec).Code)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations", SaveAssociationsRequest{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing store_id is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		dto := validDTO()
		dto.StoreID = "  "
		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations",
			SaveAssociationsRequest{Associations: []AssociationDTO{dto}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_INPUT", decodeError(t, rec).Code)
		assert.Empty(t, fx.lifecycle.records)
	})

	t.Run("unknown condition kind is rejected before the service", func(t *testing.T) {
		fx := newAPIFixture()

		dto := validDTO()
		dto.Condition = json.RawMessage(`{"kind":"not-a-kind"}`)
		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations",
			SaveAssociationsRequest{Associations: []AssociationDTO{dto}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_CONDITION", decodeError(t, rec).Code)
		assert.Empty(t, fx.lifecycle.records)
	})

	t.Run("service validation failure maps to 400", func(t *testing.T) {
		fx := newAPIFixture()
		fx.lifecycle.saveErr = fmt.Errorf("record 0: %w: priority", service.ErrInvalidRecord)

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations",
			SaveAssociationsRequest{Associations: []AssociationDTO{validDTO()}})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("storage failure maps to 500", func(t *testing.T) {
		fx := newAPIFixture()
		fx.lifecycle.saveErr = errors.New("db down")

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations",
			SaveAssociationsRequest{Associations: []AssociationDTO{validDTO()}})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "ERR_INTERNAL", decodeError(t, rec).Code)
	})
}

func TestListAssociations(t *testing.T) {
	t.Run("requires store_id", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodGet, "/api/v1/associations", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects non-integer paging parameters", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodGet, "/api/v1/associations?store_id=store-1&page=banana", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_QUERY_PARAM", decodeError(t, rec).Code)
	})

	t.Run("returns paginated records", func(t *testing.T) {
		fx := newAPIFixture()
		fx.lifecycle.records["assoc-1"] = &association.Association{
			ID:        "assoc-1",
			StoreID:   "store-1",
			Name:      "accessories",
			Condition: &condition.Block{},
		}

		rec := doJSON(t, fx.api, http.MethodGet, "/api/v1/associations?store_id=store-1", nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data       []AssociationDTO `json:"data"`
			Pagination Pagination       `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "assoc-1", resp.Data[0].ID)
		assert.Equal(t, int64(1), resp.Pagination.TotalItems)
		assert.Equal(t, 1, resp.Pagination.TotalPages)
	})
}

func TestGetAssociation(t *testing.T) {
	fx := newAPIFixture()
	fx.lifecycle.records["assoc-1"] = &association.Association{
		ID:        "assoc-1",
		StoreID:   "store-1",
		Name:      "accessories",
		Condition: &condition.Block{},
	}

	t.Run("returns the record", func(t *testing.T) {
		rec := doJSON(t, fx.api, http.MethodGet, "/api/v1/associations/assoc-1", nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var dto AssociationDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
		assert.Equal(t, "assoc-1", dto.ID)
		assert.JSONEq(t, `{"kind":"block","children":[]}`, string(dto.Condition))
	})

	t.Run("unknown id yields 404", func(t *testing.T) {
		rec := doJSON(t, fx.api, http.MethodGet, "/api/v1/associations/ghost", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "ERR_NOT_FOUND", decodeError(t, rec).Code)
	})
}

func TestDeleteAssociations(t *testing.T) {
	t.Run("single id", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodDelete, "/api/v1/associations/assoc-1", nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, fx.lifecycle.deleted, 1)
		assert.Equal(t, []string{"assoc-1"}, fx.lifecycle.deleted[0])
	})

	t.Run("batch by query parameter", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodDelete, "/api/v1/associations?ids=a,%20b,,c", nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, fx.lifecycle.deleted, 1)
		assert.Equal(t, []string{"a", "b", "c"}, fx.lifecycle.deleted[0])
	})

	t.Run("batch without ids is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodDelete, "/api/v1/associations", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fx.lifecycle.deleted)
	})
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("forwards the query and returns the result", func(t *testing.T) {
		fx := newAPIFixture()
		fx.searcher.result = &search.Result{
			TotalCount: 1,
			Matches: []search.Match{
				{AssociationID: "assoc-1", Group: "cross-sell", Priority: 1, ProductIDs: []string{"target-1"}},
			},
		}

		at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations/search", SearchRequest{
			StoreID:    "store-1",
			ProductIDs: []string{"prod-1"},
			Group:      "cross-sell",
			Take:       20,
			At:         &at,
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var result search.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.TotalCount)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "assoc-1", result.Matches[0].AssociationID)

		assert.Equal(t, "store-1", fx.searcher.last.StoreID)
		assert.Equal(t, at, fx.searcher.last.At)
	})

	t.Run("invalid query maps to 400", func(t *testing.T) {
		fx := newAPIFixture()
		fx.searcher.err = fmt.Errorf("%w: no anchors", search.ErrInvalidQuery)

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations/search", SearchRequest{StoreID: "store-1"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_QUERY", decodeError(t, rec).Code)
	})

	t.Run("unavailable store maps to 503", func(t *testing.T) {
		fx := newAPIFixture()
		fx.searcher.err = fmt.Errorf("%w: dial refused", association.ErrStoreUnavailable)

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/associations/search", SearchRequest{
			StoreID:    "store-1",
			ProductIDs: []string{"prod-1"},
		})

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "ERR_STORE_UNAVAILABLE", decodeError(t, rec).Code)
	})
}

func TestEvaluateEndpoint(t *testing.T) {
	t.Run("matching tree reports true", func(t *testing.T) {
		fx := newAPIFixture()
		fx.categories.categories = []string{"cat-1"}

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
			StoreID:    "store-1",
			ProductIDs: []string{"prod-1"},
			Condition:  json.RawMessage(`{"kind":"product-category","category_ids":["cat-1"]}`),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matched":true}`, rec.Body.String())
	})

	t.Run("non-matching tree reports false", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
			StoreID:    "store-1",
			ProductIDs: []string{"prod-1"},
			Condition:  json.RawMessage(`{"kind":"product-category","category_ids":["cat-1"]}`),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matched":false}`, rec.Body.String())
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
			StoreID:    "store-1",
			ProductIDs: []string{"prod-1"},
			Condition:  json.RawMessage(`{"kind":"not-a-kind"}`),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ERR_INVALID_CONDITION", decodeError(t, rec).Code)
	})

	t.Run("missing anchors are rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := doJSON(t, fx.api, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
			StoreID:   "store-1",
			Condition: json.RawMessage(`{"kind":"block"}`),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
