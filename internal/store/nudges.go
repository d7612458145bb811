package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Nudge is a generated re-engagement message awaiting delivery.
type Nudge struct {
	ID           int64
	ResourcePath string
	NudgeType    string
	Message      string
	Fallback     bool
	Delivered    bool
	DeliveredAt  *int64
	CreatedAt    int64
}

const nudgeColumns = `id, resource_path, nudge_type, message, fallback, delivered, delivered_at, created_at`

// CreateNudge stores an undelivered nudge and sets n.ID.
func (db *DB) CreateNudge(ctx context.Context, n *Nudge) error {
	result, err := db.ExecContext(ctx, `
		INSERT INTO nudges (resource_path, nudge_type, message, fallback, delivered, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, n.ResourcePath, n.NudgeType, n.Message, n.Fallback, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert nudge: %w", err)
	}
	n.ID, _ = result.LastInsertId()
	n.Delivered = false
	return nil
}

// GetNudge returns a nudge by id, or nil if it does not exist.
func (db *DB) GetNudge(ctx context.Context, id int64) (*Nudge, error) {
	var n Nudge
	err := db.QueryRowContext(ctx, `SELECT `+nudgeColumns+` FROM nudges WHERE id = ?`, id).
		Scan(&n.ID, &n.ResourcePath, &n.NudgeType, &n.Message, &n.Fallback, &n.Delivered, &n.DeliveredAt, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nudge: %w", err)
	}
	return &n, nil
}

// ListPendingNudges returns undelivered nudges, newest first.
func (db *DB) ListPendingNudges(ctx context.Context, limit int) ([]Nudge, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+nudgeColumns+` FROM nudges
		WHERE delivered = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending nudges: %w", err)
	}
	defer rows.Close()

	var nudges []Nudge
	for rows.Next() {
		var n Nudge
		if err := rows.Scan(&n.ID, &n.ResourcePath, &n.NudgeType, &n.Message, &n.Fallback, &n.Delivered, &n.DeliveredAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}
		nudges = append(nudges, n)
	}
	return nudges, rows.Err()
}

// MarkNudgesDelivered flags the given nudges as delivered. Unknown or
// already delivered ids are ignored. Returns the number of rows updated.
func (db *DB) MarkNudgesDelivered(ctx context.Context, ids []int64, deliveredAt int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, deliveredAt)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE nudges SET delivered = 1, delivered_at = ?
		WHERE delivered = 0 AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("mark nudges delivered: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
