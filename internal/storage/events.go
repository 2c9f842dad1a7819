package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"offernexus/internal/offers"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// event is a domain event waiting to be appended.
type event struct {
	Type string
	Data any
}

// appendEvents appends events for an aggregate inside tx with optimistic
// concurrency control: the aggregate's latest event version must equal
// expectedVersion.
func (s *Store) appendEvents(ctx context.Context, tx *sqlx.Tx, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []event) error {
	ctx, span := s.tracer.Start(ctx, "store.append_events",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	var currentVersion int
	err := tx.GetContext(ctx, &currentVersion, tx.Rebind(`
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = ?
	`), aggregateID)
	if err != nil {
		return failure(ctx, "query current version", err)
	}
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return fmt.Errorf("%w: aggregate %s: %w", offers.ErrPersistence, aggregateID, offers.ErrConcurrencyConflict)
	}

	for i, e := range events {
		version := expectedVersion + i + 1
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("%w: marshal %s event: %w", offers.ErrPersistence, e.Type, err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, version, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), aggregateID, aggregateType, e.Type, string(data), version, time.Now().UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: aggregate %s: %w", offers.ErrPersistence, aggregateID, offers.ErrConcurrencyConflict)
			}
			return failure(ctx, fmt.Sprintf("insert event %d", i), err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int("event.version", version),
			attribute.String("event.type", e.Type),
		))
	}

	return nil
}
