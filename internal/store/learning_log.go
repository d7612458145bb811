package store

import (
	"context"
	"fmt"
	"strings"
)

// LearningLogEntry records a unit of learning activity on a resource.
type LearningLogEntry struct {
	ID              int64
	ResourcePath    string
	Action          string
	DurationMinutes float64
	Score           *int
	Metadata        string // JSON
	CreatedAt       int64
}

func appendLearningLog(ctx context.Context, q querier, e *LearningLogEntry) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO learning_log (resource_path, action, duration_minutes, score, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ResourcePath, e.Action, e.DurationMinutes, e.Score, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append learning log: %w", err)
	}
	e.ID, _ = result.LastInsertId()
	return nil
}

func (tx *Tx) AppendLearningLog(ctx context.Context, e *LearningLogEntry) error {
	return appendLearningLog(ctx, tx.tx, e)
}

// LogFilter narrows ListLearningLog. Zero fields do not filter; Since is
// inclusive and Until exclusive, both in unix milliseconds.
type LogFilter struct {
	ResourcePath string
	Since        int64
	Until        int64
	Limit        int
}

// ListLearningLog returns matching entries, newest first.
func (db *DB) ListLearningLog(ctx context.Context, f LogFilter) ([]LearningLogEntry, error) {
	var where []string
	var args []any
	if f.ResourcePath != "" {
		where = append(where, "resource_path = ?")
		args = append(args, f.ResourcePath)
	}
	if f.Since > 0 {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		where = append(where, "created_at < ?")
		args = append(args, f.Until)
	}
	query := `SELECT id, resource_path, action, duration_minutes, score, COALESCE(metadata, ''), created_at
		FROM learning_log` + whereClause(where) + ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limitArg(f.Limit))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list learning log: %w", err)
	}
	defer rows.Close()

	var entries []LearningLogEntry
	for rows.Next() {
		var e LearningLogEntry
		if err := rows.Scan(&e.ID, &e.ResourcePath, &e.Action, &e.DurationMinutes, &e.Score, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan learning log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LearningDays returns the distinct UTC calendar days (YYYY-MM-DD) with at
// least one learning log entry, newest first.
func (db *DB) LearningDays(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT date(created_at / 1000, 'unixepoch') AS day
		FROM learning_log ORDER BY day DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list learning days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan learning day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// limitArg maps a zero limit to SQLite's "no limit".
func limitArg(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
