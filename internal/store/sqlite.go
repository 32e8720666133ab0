package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRunStore implements RunStore using SQLite for persistence.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore creates a new SQLiteRunStore rooted at projectRoot.
// It creates the database at .egress/egress.db.
func NewSQLiteRunStore(projectRoot string) (*SQLiteRunStore, error) {
	dir := LocalEgressPath(projectRoot)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}

	dbPath := filepath.Join(dir, "egress.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file location.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// RecordRun inserts run and its exit order in one transaction.
func (s *SQLiteRunStore) RecordRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at,
			strategy, layout, x_size, y_size, agents, seed, target_x, target_y,
			status, exited, ticks, moves, stays, blocked, elapsed_ns,
			user_ns, system_ns, max_rss_kb
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeFormat),
		run.Strategy, run.Layout, run.XSize, run.YSize, run.Agents, int64(run.Seed), run.TargetX, run.TargetY,
		string(run.Status), run.Exited, run.Ticks, run.Moves, run.Stays, run.Blocked, int64(run.Elapsed),
		int64(run.UserTime), int64(run.SystemTime), run.MaxRSSKB,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.ExitOrder) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_exits (run_id, position, agent_id) VALUES (?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("failed to prepare exit insert: %w", err)
		}
		defer stmt.Close()

		for i, agentID := range run.ExitOrder {
			if _, err := stmt.ExecContext(ctx, run.ID, i, agentID); err != nil {
				return "", fmt.Errorf("failed to insert exit %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

const runColumns = `
	id, created_at,
	strategy, layout, x_size, y_size, agents, seed, target_x, target_y,
	status, exited, ticks, moves, stays, blocked, elapsed_ns,
	user_ns, system_ns, max_rss_kb`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                             Run
		createdAt, status               string
		seed, elapsed, userNS, systemNS int64
	)
	err := row.Scan(
		&run.ID, &createdAt,
		&run.Strategy, &run.Layout, &run.XSize, &run.YSize, &run.Agents, &seed, &run.TargetX, &run.TargetY,
		&status, &run.Exited, &run.Ticks, &run.Moves, &run.Stays, &run.Blocked, &elapsed,
		&userNS, &systemNS, &run.MaxRSSKB,
	)
	if err != nil {
		return Run{}, err
	}

	run.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	run.Seed = uint64(seed)
	run.Status = RunStatus(status)
	run.Elapsed = time.Duration(elapsed)
	run.UserTime = time.Duration(userNS)
	run.SystemTime = time.Duration(systemNS)
	return run, nil
}

// GetRun retrieves a run with its exit order.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT agent_id FROM run_exits WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query exits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var agentID int
		if err := rows.Scan(&agentID); err != nil {
			return nil, fmt.Errorf("failed to scan exit: %w", err)
		}
		run.ExitOrder = append(run.ExitOrder, agentID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exits: %w", err)
	}

	return &run, nil
}

// ListRuns returns matching runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + runColumns + ` FROM runs`)
	if filter.Strategy != "" {
		query.WriteString(` WHERE strategy = ?`)
		args = append(args, filter.Strategy)
	}
	query.WriteString(` ORDER BY created_at DESC, rowid DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run; its exits go with it through the foreign key.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
