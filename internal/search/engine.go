package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/evaluation"
	"github.com/freyrlabs/freyr/internal/observability"
)

// Engine runs association searches directly against the store and the
// catalog providers. It holds no mutable state: concurrent searches need no
// coordination beyond what the collaborators themselves guarantee.
type Engine struct {
	store      association.Store
	categories evaluation.CategoryProvider
	properties evaluation.PropertyProvider
	logger     *slog.Logger
}

var _ Searcher = (*Engine)(nil)

// NewEngine creates a search engine. All collaborators are mandatory; the
// logger falls back to slog.Default when nil.
func NewEngine(
	store association.Store,
	categories evaluation.CategoryProvider,
	properties evaluation.PropertyProvider,
	logger *slog.Logger,
) *Engine {
	if store == nil {
		panic("search: association store cannot be nil")
	}
	if categories == nil {
		panic("search: category provider cannot be nil")
	}
	if properties == nil {
		panic("search: property provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:      store,
		categories: categories,
		properties: properties,
		logger:     logger,
	}
}

// Search returns the page of associations whose rule holds for the query.
//
// Pipeline: validate, load enabled candidates, drop records outside their
// active window, build one evaluation context, evaluate every remaining
// condition tree against it, order survivors by (priority, id), then page.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		observability.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := e.store.ListCandidates(ctx, q.StoreID, q.Group)
	if err != nil {
		return nil, err
	}

	at := q.EvaluationTime()
	active := candidates[:0:0]
	for _, record := range candidates {
		if record.ActiveAt(at) {
			active = append(active, record)
		}
	}

	// No active candidates means no matches; skip the provider round-trips.
	if len(active) == 0 {
		return &Result{TotalCount: 0, Matches: []Match{}}, nil
	}

	evalCtx, err := evaluation.NewContext(ctx, q.StoreID, q.ProductIDs, e.categories, e.properties)
	if err != nil {
		return nil, err
	}

	matched := make([]*association.Association, 0, len(active))
	for _, record := range active {
		if record.Condition == nil {
			// A record without a condition tree should not exist (saves are
			// validated fail-closed); treat it as non-matching, never as
			// always-true.
			e.logger.Warn("association has no condition tree, skipping",
				slog.String("association_id", record.ID),
			)
			continue
		}

		if record.Condition.Matches(evalCtx) {
			matched = append(matched, record)
			observability.SearchCandidatesEvaluated.WithLabelValues("matched").Inc()
		} else {
			observability.SearchCandidatesEvaluated.WithLabelValues("rejected").Inc()
		}
	}

	// Deterministic total order: priority ascending, id as the stable
	// tie-break. No two distinct records compare equal.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	page := paginate(matched, q.Skip, q.Take)

	matches := make([]Match, 0, len(page))
	for _, record := range page {
		matches = append(matches, Match{
			AssociationID: record.ID,
			Group:         record.Group,
			Priority:      record.Priority,
			ProductIDs:    record.TargetProductIDs,
		})
	}

	return &Result{TotalCount: total, Matches: matches}, nil
}

// paginate applies skip/take bounds. Skip beyond the total yields an empty
// page, not an error; take of zero yields an empty page.
func paginate(records []*association.Association, skip, take int) []*association.Association {
	if skip >= len(records) {
		return nil
	}
	records = records[skip:]
	if take < len(records) {
		records = records[:take]
	}
	return records
}
