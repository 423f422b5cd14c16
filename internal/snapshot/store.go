// Package snapshot persists resource snapshots in SQLite so the service can run without a
// resources file.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookable/internal/interval"
	"bookable/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("resource not found")

// Store is a SQLite-backed resource snapshot store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens the database at path and runs migrations.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger.With().Str("component", "snapshot_store").Logger()}
	s.logger.Info().Str("path", path).Msg("snapshot store initialized")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			min_duration_seconds INTEGER NOT NULL DEFAULT 0,
			max_duration_seconds INTEGER NOT NULL DEFAULT 0,
			start_interval INTEGER NOT NULL,
			buffer_before_seconds INTEGER NOT NULL DEFAULT 0,
			buffer_after_seconds INTEGER NOT NULL DEFAULT 0,
			min_days_before INTEGER NOT NULL DEFAULT 0,
			max_days_before INTEGER,
			available_from DATETIME,
			available_until DATETIME,
			hours_weekdays TEXT,
			hours_open INTEGER,
			hours_close INTEGER,
			hours_horizon_days INTEGER,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS spans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			buffer_before_seconds INTEGER NOT NULL DEFAULT 0,
			buffer_after_seconds INTEGER NOT NULL DEFAULT 0,
			is_blocked BOOLEAN NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_spans_resource ON spans(resource_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_resource ON reservations(resource_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_resource ON rounds(resource_id, start_time)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// SaveResource replaces the stored snapshot of res.
func (s *Store) SaveResource(ctx context.Context, res models.Resource) error {
	return s.SaveAll(ctx, []models.Resource{res})
}

// SaveAll replaces the stored snapshots of every resource in a single transaction.
func (s *Store) SaveAll(ctx context.Context, resources []models.Resource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, res := range resources {
		if err := saveResource(ctx, tx, res, now); err != nil {
			return fmt.Errorf("save resource %s: %w", res.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug().Int("resources", len(resources)).Msg("snapshots saved")
	return nil
}

func saveResource(ctx context.Context, tx *sql.Tx, res models.Resource, now time.Time) error {
	c := res.Constraints

	var maxDays sql.NullInt64
	if c.MaxDaysBefore != nil {
		maxDays = sql.NullInt64{Int64: int64(*c.MaxDaysBefore), Valid: true}
	}

	var weekdays sql.NullString
	var open, closing, horizon sql.NullInt64
	if h := res.Hours; h != nil {
		names := make([]string, len(h.Weekdays))
		for i, w := range h.Weekdays {
			names[i] = w.String()
		}
		weekdays = sql.NullString{String: strings.Join(names, ","), Valid: true}
		open = sql.NullInt64{Int64: int64(h.Open), Valid: true}
		closing = sql.NullInt64{Int64: int64(h.Close), Valid: true}
		horizon = sql.NullInt64{Int64: int64(h.HorizonDays), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO resources (
			id, name, min_duration_seconds, max_duration_seconds, start_interval,
			buffer_before_seconds, buffer_after_seconds, min_days_before, max_days_before,
			available_from, available_until,
			hours_weekdays, hours_open, hours_close, hours_horizon_days, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			min_duration_seconds = excluded.min_duration_seconds,
			max_duration_seconds = excluded.max_duration_seconds,
			start_interval = excluded.start_interval,
			buffer_before_seconds = excluded.buffer_before_seconds,
			buffer_after_seconds = excluded.buffer_after_seconds,
			min_days_before = excluded.min_days_before,
			max_days_before = excluded.max_days_before,
			available_from = excluded.available_from,
			available_until = excluded.available_until,
			hours_weekdays = excluded.hours_weekdays,
			hours_open = excluded.hours_open,
			hours_close = excluded.hours_close,
			hours_horizon_days = excluded.hours_horizon_days,
			updated_at = excluded.updated_at`,
		res.ID, res.Name, seconds(c.MinDuration), seconds(c.MaxDuration), int(c.StartInterval),
		seconds(c.BufferBefore), seconds(c.BufferAfter), c.MinDaysBefore, maxDays,
		nullTime(c.AvailableFrom), nullTime(c.AvailableUntil),
		weekdays, open, closing, horizon, now,
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	for _, table := range []string{"spans", "reservations", "rounds"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE resource_id = ?", table), res.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, sp := range res.Spans {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spans (resource_id, start_time, end_time) VALUES (?, ?, ?)`,
			res.ID, sp.Start.UTC(), sp.End.UTC(),
		); err != nil {
			return fmt.Errorf("insert span: %w", err)
		}
	}

	for _, r := range res.Reservations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (resource_id, start_time, end_time, buffer_before_seconds, buffer_after_seconds, is_blocked, state)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.ID, r.Start.UTC(), r.End.UTC(), seconds(r.BufferBefore), seconds(r.BufferAfter), r.IsBlocked, string(r.State),
		); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	}

	for _, p := range res.Rounds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rounds (resource_id, start_time, end_time) VALUES (?, ?, ?)`,
			res.ID, p.Start.UTC(), p.End.UTC(),
		); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
	}

	return nil
}

// DeleteResource removes a resource and its children.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectResource = `
	SELECT id, name, min_duration_seconds, max_duration_seconds, start_interval,
		buffer_before_seconds, buffer_after_seconds, min_days_before, max_days_before,
		available_from, available_until,
		hours_weekdays, hours_open, hours_close, hours_horizon_days
	FROM resources`

// Resource loads one resource snapshot.
func (s *Store) Resource(ctx context.Context, id string) (models.Resource, error) {
	row := s.db.QueryRowContext(ctx, selectResource+` WHERE id = ?`, id)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Resource{}, ErrNotFound
	}
	if err != nil {
		return models.Resource{}, err
	}
	if err := s.loadChildren(ctx, &res); err != nil {
		return models.Resource{}, err
	}
	return res, nil
}

// ListResources loads every resource snapshot ordered by id.
func (s *Store) ListResources(ctx context.Context) ([]models.Resource, error) {
	rows, err := s.db.QueryContext(ctx, selectResource+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}

	var out []models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := s.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LastModified returns the newest updated_at and the resource count. Together they change
// whenever the stored snapshot set changes.
func (s *Store) LastModified(ctx context.Context) (time.Time, int, error) {
	var (
		count  int
		latest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(updated_at) FROM resources`).Scan(&count, &latest)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("query last modified: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, count, nil
	}
	t, err := parseSQLiteTime(latest.String)
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(row scanner) (models.Resource, error) {
	var (
		res                    models.Resource
		minDur, maxDur         int64
		step                   int
		bufBefore, bufAfter    int64
		maxDays                sql.NullInt64
		from, until            sql.NullTime
		weekdays               sql.NullString
		open, closing, horizon sql.NullInt64
	)
	err := row.Scan(
		&res.ID, &res.Name, &minDur, &maxDur, &step,
		&bufBefore, &bufAfter, &res.Constraints.MinDaysBefore, &maxDays,
		&from, &until,
		&weekdays, &open, &closing, &horizon,
	)
	if err != nil {
		return models.Resource{}, err
	}

	c := &res.Constraints
	c.MinDuration = time.Duration(minDur) * time.Second
	c.MaxDuration = time.Duration(maxDur) * time.Second
	c.StartInterval = models.StartInterval(step)
	c.BufferBefore = time.Duration(bufBefore) * time.Second
	c.BufferAfter = time.Duration(bufAfter) * time.Second
	if maxDays.Valid {
		v := int(maxDays.Int64)
		c.MaxDaysBefore = &v
	}
	if from.Valid {
		c.AvailableFrom = &from.Time
	}
	if until.Valid {
		c.AvailableUntil = &until.Time
	}

	if weekdays.Valid {
		h := &models.OpeningHours{
			Open:        interval.Clock(open.Int64),
			Close:       interval.Clock(closing.Int64),
			HorizonDays: int(horizon.Int64),
		}
		for _, name := range strings.Split(weekdays.String, ",") {
			if name == "" {
				continue
			}
			w, err := interval.ParseWeekday(name)
			if err != nil {
				return models.Resource{}, fmt.Errorf("resource %s: %w", res.ID, err)
			}
			h.Weekdays = append(h.Weekdays, w)
		}
		res.Hours = h
	}

	return res, nil
}

func (s *Store) loadChildren(ctx context.Context, res *models.Resource) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT start_time, end_time FROM spans WHERE resource_id = ? ORDER BY id`, res.ID)
	if err != nil {
		return fmt.Errorf("query spans: %w", err)
	}
	if res.Spans, err = collectRows(rows, scanSpan); err != nil {
		return fmt.Errorf("read spans: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT start_time, end_time, buffer_before_seconds, buffer_after_seconds, is_blocked, state
		 FROM reservations WHERE resource_id = ? ORDER BY id`, res.ID)
	if err != nil {
		return fmt.Errorf("query reservations: %w", err)
	}
	if res.Reservations, err = collectRows(rows, scanReservation); err != nil {
		return fmt.Errorf("read reservations: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT start_time, end_time FROM rounds WHERE resource_id = ? ORDER BY id`, res.ID)
	if err != nil {
		return fmt.Errorf("query rounds: %w", err)
	}
	if res.Rounds, err = collectRows(rows, scanRound); err != nil {
		return fmt.Errorf("read rounds: %w", err)
	}
	return nil
}

// collectRows scans every row with scan and closes rows. Iteration errors are returned.
func collectRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSpan(rows *sql.Rows) (models.Span, error) {
	var sp models.Span
	if err := rows.Scan(&sp.Start, &sp.End); err != nil {
		return models.Span{}, fmt.Errorf("scan span: %w", err)
	}
	return sp, nil
}

func scanReservation(rows *sql.Rows) (models.BlockingReservation, error) {
	var (
		r             models.BlockingReservation
		before, after int64
		state         string
	)
	if err := rows.Scan(&r.Start, &r.End, &before, &after, &r.IsBlocked, &state); err != nil {
		return models.BlockingReservation{}, fmt.Errorf("scan reservation: %w", err)
	}
	r.BufferBefore = time.Duration(before) * time.Second
	r.BufferAfter = time.Duration(after) * time.Second
	r.State = models.ReservationState(state)
	return r, nil
}

func scanRound(rows *sql.Rows) (models.RoundPeriod, error) {
	var p models.RoundPeriod
	if err := rows.Scan(&p.Start, &p.End); err != nil {
		return models.RoundPeriod{}, fmt.Errorf("scan round: %w", err)
	}
	return p, nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// parseSQLiteTime parses the text form go-sqlite3 writes for time.Time values.
func parseSQLiteTime(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q", s)
}
