package db

import (
	"context"
	"fmt"
	"time"

	"ms-passes/internal/models"
)

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := d.conn(ctx).NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) GetEventByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &event, nil
}

func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.conn(ctx).NewSelect().
		Model(&events).
		Order("id ASC").
		Scan(ctx)
	return events, err
}

// DeleteEvent removes the event together with all of its passes.
func (d *DB) DeleteEvent(ctx context.Context, id int64) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if _, err := d.DeleteAllPassesForEvent(ctx, id); err != nil {
			return err
		}

		res, err := d.conn(ctx).NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete event %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LockEvent takes the write lock on the event row for the rest of the
// transaction in ctx. It is a no-op update: Postgres locks the row, SQLite takes
// its database write lock. Callers use it to serialise pass top-ups per event.
func (d *DB) LockEvent(ctx context.Context, id int64) error {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("id = id").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock event %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// EventUsage is an event with the sum of used_count over its passes.
type EventUsage struct {
	ID          int64  `bun:"id"`
	Name        string `bun:"name"`
	TotalPasses int    `bun:"total_passes"`
	MaxUses     int    `bun:"max_uses"`
	Used        int    `bun:"used"`
}

func (d *DB) ListEventUsage(ctx context.Context) ([]EventUsage, error) {
	rows := make([]EventUsage, 0)
	err := d.conn(ctx).NewRaw(`
		SELECT e.id, e.name, e.total_passes, e.max_uses, CAST(COALESCE(SUM(p.used_count), 0) AS BIGINT) AS used
		FROM events AS e
		LEFT JOIN passes AS p ON p.event_id = e.id
		GROUP BY e.id, e.name, e.total_passes, e.max_uses
		ORDER BY e.id ASC`).
		Scan(ctx, &rows)
	return rows, err
}
