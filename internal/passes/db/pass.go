package db

import (
	"context"
	"fmt"
	"time"

	"ms-passes/internal/models"
)

// InsertPassIfAbsent stores a new unused pass and reports whether it was created.
// A code that already exists, for any event, leaves the table untouched.
func (d *DB) InsertPassIfAbsent(ctx context.Context, eventID int64, code string) (bool, error) {
	pass := models.Pass{
		EventID:   eventID,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	}

	res, err := d.conn(ctx).NewInsert().
		Model(&pass).
		On("CONFLICT (code) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert pass %s: %w", code, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) GetPassByCode(ctx context.Context, code string) (*models.Pass, error) {
	var pass models.Pass
	err := d.conn(ctx).NewSelect().
		Model(&pass).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &pass, nil
}

func (d *DB) ListPassesByEvent(ctx context.Context, eventID int64) ([]models.Pass, error) {
	passes := make([]models.Pass, 0)
	err := d.conn(ctx).NewSelect().
		Model(&passes).
		Where("event_id = ?", eventID).
		Order("id ASC").
		Scan(ctx)
	return passes, err
}

func (d *DB) CountPassesByEvent(ctx context.Context, eventID int64) (int, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.Pass)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

// ConditionalIncrementPass consumes one use of the pass in a single statement,
// so concurrent redemptions can never push used_count past the event's max_uses.
// It returns false when the code is unknown or already fully used.
func (d *DB) ConditionalIncrementPass(ctx context.Context, code string) (bool, int, error) {
	var usedCounts []int
	err := d.conn(ctx).NewRaw(`
		UPDATE passes
		SET used_count = used_count + 1
		WHERE code = ?
		  AND used_count < (SELECT e.max_uses FROM events AS e WHERE e.id = passes.event_id)
		RETURNING used_count`, code).
		Scan(ctx, &usedCounts)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment pass %s: %w", code, err)
	}
	if len(usedCounts) == 0 {
		return false, 0, nil
	}
	return true, usedCounts[0], nil
}

// SumUsedCount returns the total number of redemptions for an event, 0 when it has no passes.
func (d *DB) SumUsedCount(ctx context.Context, eventID int64) (int, error) {
	var used int
	err := d.conn(ctx).NewSelect().
		Model((*models.Pass)(nil)).
		ColumnExpr("CAST(COALESCE(SUM(used_count), 0) AS BIGINT)").
		Where("event_id = ?", eventID).
		Scan(ctx, &used)
	return used, err
}

func (d *DB) DeleteAllPassesForEvent(ctx context.Context, eventID int64) (int, error) {
	res, err := d.conn(ctx).NewDelete().
		Model((*models.Pass)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete passes of event %d: %w", eventID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
