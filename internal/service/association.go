// Package service implements the association lifecycle: validated writes,
// reads for the authoring surface, and change-event publication that keeps
// downstream caches honest.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/logger"
)

// ErrInvalidRecord marks a record rejected by lifecycle validation. Callers
// match on it to translate the failure into a client error.
var ErrInvalidRecord = errors.New("invalid association record")

// AssociationService coordinates persistence and change notification. Every
// successful mutation publishes one ChangedEvent per affected record, after
// the storage write committed.
type AssociationService struct {
	store  association.Store
	events association.Publisher
	logger *slog.Logger
}

// NewAssociationService wires the lifecycle service. All dependencies are
// mandatory except the logger, which defaults to slog.Default().
func NewAssociationService(store association.Store, events association.Publisher, log *slog.Logger) *AssociationService {
	if store == nil {
		panic("service: association store cannot be nil")
	}
	if events == nil {
		panic("service: event publisher cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &AssociationService{store: store, events: events, logger: log}
}

// GetByIDs returns the records with the given ids. Missing ids are silently
// skipped.
func (s *AssociationService) GetByIDs(ctx context.Context, ids []string) ([]*association.Association, error) {
	return s.store.GetByIDs(ctx, ids)
}

// List returns a page of records for the authoring surface plus the total
// count.
func (s *AssociationService) List(ctx context.Context, storeID, group string, limit, offset int) ([]*association.Association, int64, error) {
	if storeID == "" {
		return nil, 0, fmt.Errorf("%w: store id is required", ErrInvalidRecord)
	}
	if limit < 0 || offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit and offset cannot be negative", ErrInvalidRecord)
	}
	return s.store.List(ctx, storeID, group, limit, offset)
}

// Save validates and upserts the given records, then publishes a change
// event for each. Validation is all-or-nothing: one bad record rejects the
// whole batch before anything is written.
func (s *AssociationService) Save(ctx context.Context, records []*association.Association) ([]*association.Association, error) {
	for i, record := range records {
		if err := validateRecord(record); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	saved, err := s.store.Save(ctx, records)
	if err != nil {
		return nil, err
	}

	for _, record := range saved {
		s.events.Publish(ctx, association.ChangedEvent{
			StoreID:       record.StoreID,
			AssociationID: record.ID,
		})
	}

	logger.FromContext(ctx).Info("associations saved", slog.Int("count", len(saved)))
	return saved, nil
}

// Delete removes the records with the given ids and publishes a change event
// for each record that existed. Unknown ids are skipped silently.
func (s *AssociationService) Delete(ctx context.Context, ids []string) error {
	// Resolve store ids before the rows disappear; the events need them.
	existing, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	deleteIDs := make([]string, 0, len(existing))
	for _, record := range existing {
		deleteIDs = append(deleteIDs, record.ID)
	}

	if err := s.store.Delete(ctx, deleteIDs); err != nil {
		return err
	}

	for _, record := range existing {
		s.events.Publish(ctx, association.ChangedEvent{
			StoreID:       record.StoreID,
			AssociationID: record.ID,
		})
	}

	logger.FromContext(ctx).Info("associations deleted", slog.Int("count", len(deleteIDs)))
	return nil
}

// validateRecord enforces the lifecycle invariants. A record with no
// condition tree is rejected rather than stored as match-everything.
func validateRecord(record *association.Association) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.StoreID == "" {
		return fmt.Errorf("%w: store id is required", ErrInvalidRecord)
	}
	if record.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if record.Condition == nil {
		return fmt.Errorf("%w: condition tree is required", ErrInvalidRecord)
	}
	if record.Priority < 0 {
		return fmt.Errorf("%w: priority cannot be negative", ErrInvalidRecord)
	}
	if record.StartDate != nil && record.EndDate != nil && record.EndDate.Before(*record.StartDate) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalidRecord)
	}
	return nil
}
