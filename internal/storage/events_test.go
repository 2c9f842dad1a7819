package storage

import (
	"context"

	"github.com/google/uuid"
)

// storedEvent is an appended event as read back from the events table.
type storedEvent struct {
	AggregateID uuid.UUID `db:"aggregate_id"`
	EventType   string    `db:"event_type"`
	EventData   string    `db:"event_data"`
	Version     int       `db:"version"`
}

// loadEvents returns an aggregate's events in version order.
func (s *Store) loadEvents(ctx context.Context, aggregateID uuid.UUID) ([]storedEvent, error) {
	var events []storedEvent
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`
		SELECT aggregate_id, event_type, event_data, version
		FROM events
		WHERE aggregate_id = ?
		ORDER BY version ASC
	`), aggregateID)
	if err != nil {
		return nil, failure(ctx, "query events", err)
	}
	return events, nil
}
