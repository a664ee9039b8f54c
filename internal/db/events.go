package db

import (
	"fmt"
	"time"
)

// Journal actions.
const (
	ActionGenerate      = "generate"
	ActionDelete        = "delete"
	ActionLoadRecovered = "load_recovered"
	ActionExport        = "export"
)

// EventRow represents one journal entry.
type EventRow struct {
	ID          int64
	Action      string
	Fingerprint string
	RecordCount int
	Success     bool
	Detail      string
	CreatedAt   time.Time
}

// InsertEvent appends an event and returns its database ID. A zero CreatedAt
// is stamped with the current time.
func InsertEvent(d *DB, ev EventRow) (int64, error) {
	if d == nil || d.sql == nil {
		return 0, fmt.Errorf("database handle is nil")
	}
	if ev.Action == "" {
		return 0, fmt.Errorf("event action is required")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	res, err := d.sql.Exec(
		`INSERT INTO events (action, fingerprint, record_count, success, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Action, ev.Fingerprint, ev.RecordCount, boolToInt(ev.Success), ev.Detail,
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch insert id: %w", err)
	}

	return id, nil
}

// ListEvents returns the most recent events, newest first. A limit <= 0
// returns every event.
func ListEvents(d *DB, limit int) ([]EventRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.sql.Query(
		`SELECT id, action, fingerprint, record_count, success, detail, created_at
		 FROM events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var results []EventRow
	for rows.Next() {
		var (
			r       EventRow
			success int
			created string
		)
		if err := rows.Scan(
			&r.ID,
			&r.Action,
			&r.Fingerprint,
			&r.RecordCount,
			&success,
			&r.Detail,
			&created,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.Success = success != 0
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return results, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
