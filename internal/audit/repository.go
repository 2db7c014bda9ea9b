package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Repository defines the command log and sighting operations.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	TouchSighting(ctx context.Context, s Sighting) error
	Sightings(ctx context.Context) ([]Sighting, error)
}

// SQLiteRepository stores audit data in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new repository. The command_log and
// device_sightings migrations must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}

// nullableString returns nil for empty strings so nullable TEXT columns
// store NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Record inserts an entry. ID and ExecutedAt are generated if empty, and
// IssuedAt defaults to ExecutedAt.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()[:8]
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	if e.IssuedAt.IsZero() {
		e.IssuedAt = e.ExecutedAt
	}

	// Command IDs supplied over MQTT may repeat; keep the latest execution.
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO command_log
		   (id, kind, address, target, source, outcome, error, issued_at, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind,
		nullableString(e.Address), nullableString(e.Target),
		e.Source, e.Outcome, nullableString(e.Error),
		formatTime(e.IssuedAt), formatTime(e.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // dynamic query builder
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, filter.Address)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, kind, address, target, source, outcome, error, issued_at, executed_at
		 FROM command_log %s ORDER BY executed_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var address, target, errText sql.NullString
		var issuedAt, executedAt string

		if err := rows.Scan(&e.ID, &e.Kind, &address, &target, &e.Source,
			&e.Outcome, &errText, &issuedAt, &executedAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		e.Address = address.String
		e.Target = target.String
		e.Error = errText.String

		if e.IssuedAt, err = parseTime(issuedAt); err != nil {
			return nil, fmt.Errorf("parsing issued_at %q: %w", issuedAt, err)
		}
		if e.ExecutedAt, err = parseTime(executedAt); err != nil {
			return nil, fmt.Errorf("parsing executed_at %q: %w", executedAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries executed before the given time and returns how
// many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM command_log WHERE executed_at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning command log: %w", err)
	}
	return n, nil
}

// TouchSighting creates or refreshes a sighting. An empty Name or LastState
// keeps the stored value.
func (r *SQLiteRepository) TouchSighting(ctx context.Context, s Sighting) error {
	if s.LastSeen.IsZero() {
		s.LastSeen = time.Now().UTC()
	}
	seen := formatTime(s.LastSeen)
	state := s.LastState
	if state == "" {
		state = "unknown"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_sightings (address, name, last_state, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET
		   name = CASE WHEN excluded.name = '' THEN device_sightings.name ELSE excluded.name END,
		   last_state = CASE WHEN ? = '' THEN device_sightings.last_state ELSE excluded.last_state END,
		   last_seen = excluded.last_seen`,
		s.Address, s.Name, state, seen, seen, s.LastState,
	)
	if err != nil {
		return fmt.Errorf("updating sighting %s: %w", s.Address, err)
	}
	return nil
}

// Sightings returns every known base station ordered by address.
func (r *SQLiteRepository) Sightings(ctx context.Context) ([]Sighting, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT address, name, last_state, first_seen, last_seen FROM device_sightings ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close()

	sightings := []Sighting{}
	for rows.Next() {
		var s Sighting
		var first, last string
		if err := rows.Scan(&s.Address, &s.Name, &s.LastState, &first, &last); err != nil {
			return nil, fmt.Errorf("scanning sighting: %w", err)
		}
		if s.FirstSeen, err = parseTime(first); err != nil {
			return nil, fmt.Errorf("parsing first_seen %q: %w", first, err)
		}
		if s.LastSeen, err = parseTime(last); err != nil {
			return nil, fmt.Errorf("parsing last_seen %q: %w", last, err)
		}
		sightings = append(sightings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sightings: %w", err)
	}
	return sightings, nil
}
